package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type fakeSweeper struct {
	expired      int64
	expireErr    error
	histogram    map[enums.QueueStatus]int64
	histogramErr error

	sweeps int
}

func (f *fakeSweeper) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	f.sweeps++
	return f.expired, f.expireErr
}

func (f *fakeSweeper) StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error) {
	return f.histogram, f.histogramErr
}

func newQueueExpiryJob(t *testing.T, sweeper *fakeSweeper) Job {
	t.Helper()
	job, err := NewQueueExpiryJob(QueueExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Queue:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewQueueExpiryJob: %v", err)
	}
	return job
}

func TestQueueExpiryJob_sweepsOnce(t *testing.T) {
	sweeper := &fakeSweeper{
		expired:   7,
		histogram: map[enums.QueueStatus]int64{enums.QueueStatusPending: 3},
	}
	job := newQueueExpiryJob(t, sweeper)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.sweeps != 1 {
		t.Fatalf("sweeps = %d, want 1", sweeper.sweeps)
	}
}

func TestQueueExpiryJob_histogramFailureDoesNotMaskSweep(t *testing.T) {
	sweeper := &fakeSweeper{histogramErr: errors.New("timeout")}
	job := newQueueExpiryJob(t, sweeper)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
	if sweeper.sweeps != 1 {
		t.Fatal("the sweep must still run when the histogram fails")
	}
}

func TestQueueExpiryJob_bothFailuresCombined(t *testing.T) {
	sweeper := &fakeSweeper{
		expireErr:    errors.New("sweep failed"),
		histogramErr: errors.New("histogram failed"),
	}
	job := newQueueExpiryJob(t, sweeper)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistry_preservesOrderAndSkipsNil(t *testing.T) {
	ttl := newRequestTTLJob(t, &fakeExpirer{})
	sweep := newQueueExpiryJob(t, &fakeSweeper{})

	registry := NewRegistry(ttl, nil, sweep)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[0].Name() != "request-ttl" || jobs[1].Name() != "queue-expiry" {
		t.Fatalf("order = %s, %s", jobs[0].Name(), jobs[1].Name())
	}
}
