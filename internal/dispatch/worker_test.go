package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type fakeQueueRepo struct {
	mu sync.Mutex

	claimed   []queue.ClaimedEntry
	delivered []uuid.UUID
	failed    []queue.MarkFailedParams

	markDeliveredResult bool
	expireStaleErr      error
}

func (f *fakeQueueRepo) WithTx(tx *gorm.DB) queue.Repository { return f }

func (f *fakeQueueRepo) CreateBatch(ctx context.Context, entries []*models.QueueEntry) error {
	return nil
}

func (f *fakeQueueRepo) ClaimBatch(ctx context.Context, params queue.ClaimParams) ([]queue.ClaimedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.claimed
	f.claimed = nil
	return out, nil
}

func (f *fakeQueueRepo) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, id)
	return f.markDeliveredResult, nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, params queue.MarkFailedParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, params)
	return true, nil
}

func (f *fakeQueueRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return 0, f.expireStaleErr
}

func (f *fakeQueueRepo) ExpireForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeQueueRepo) GetByRequestSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.QueueEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.QueueEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) ListSellerEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]queue.SellerEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error) {
	return map[enums.QueueStatus]int64{}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []SellerNotification
	err   error
}

func (f *fakeNotifier) NotifySeller(ctx context.Context, notification SellerNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notification)
	return f.err
}

func newTestWorker(t *testing.T, repo *fakeQueueRepo, notifier *fakeNotifier, cfg config.DispatchConfig) *Worker {
	t.Helper()
	worker, err := NewWorker(WorkerParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Queue:    repo,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return worker
}

func claimedEntry(attempts int) queue.ClaimedEntry {
	return queue.ClaimedEntry{
		QueueEntry: models.QueueEntry{
			ID:        uuid.New(),
			RequestID: uuid.New(),
			SellerID:  uuid.New(),
			Attempts:  attempts,
			Status:    enums.QueueStatusProcessing,
		},
		PartName:       "Brake pads",
		Category:       "Brakes",
		VehicleMake:    "Toyota",
		MembershipTier: enums.MembershipTierBasic,
	}
}

func TestRunCycle_successMarksDelivered(t *testing.T) {
	entry := claimedEntry(0)
	repo := &fakeQueueRepo{
		claimed:             []queue.ClaimedEntry{entry},
		markDeliveredResult: true,
	}
	notifier := &fakeNotifier{}
	worker := newTestWorker(t, repo, notifier, config.DispatchConfig{})

	processed, err := worker.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if !processed {
		t.Fatal("expected processed=true")
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(notifier.calls))
	}
	if notifier.calls[0].Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", notifier.calls[0].Attempt)
	}
	if len(repo.delivered) != 1 || repo.delivered[0] != entry.ID {
		t.Fatalf("delivered = %v, want [%s]", repo.delivered, entry.ID)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("unexpected failures: %v", repo.failed)
	}
}

func TestRunCycle_failureSchedulesRetry(t *testing.T) {
	entry := claimedEntry(0)
	repo := &fakeQueueRepo{claimed: []queue.ClaimedEntry{entry}}
	notifier := &fakeNotifier{err: errors.New("pubsub unavailable")}
	worker := newTestWorker(t, repo, notifier, config.DispatchConfig{
		MaxAttempts: 5,
		BackoffBase: 30 * time.Second,
		BackoffMax:  15 * time.Minute,
	})

	if _, err := worker.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(repo.failed))
	}
	record := repo.failed[0]
	if record.Terminal {
		t.Fatal("first failure must not be terminal")
	}
	if record.NextAttemptAt == nil {
		t.Fatal("retry must carry a next attempt time")
	}
	if record.LastError == "" {
		t.Fatal("last error must be recorded")
	}
	if len(repo.delivered) != 0 {
		t.Fatal("failed entry must not be marked delivered")
	}
}

func TestRunCycle_exhaustedAttemptsAreTerminal(t *testing.T) {
	entry := claimedEntry(4)
	repo := &fakeQueueRepo{claimed: []queue.ClaimedEntry{entry}}
	notifier := &fakeNotifier{err: errors.New("still down")}
	worker := newTestWorker(t, repo, notifier, config.DispatchConfig{MaxAttempts: 5})

	if _, err := worker.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(repo.failed))
	}
	if !repo.failed[0].Terminal {
		t.Fatal("fifth failure must be terminal")
	}
	if repo.failed[0].NextAttemptAt != nil {
		t.Fatal("terminal failure must not schedule a retry")
	}
}

func TestRunCycle_emptyBatchIsIdle(t *testing.T) {
	repo := &fakeQueueRepo{}
	worker := newTestWorker(t, repo, &fakeNotifier{}, config.DispatchConfig{})

	processed, err := worker.runCycle(context.Background())
	if err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if processed {
		t.Fatal("empty batch must report idle")
	}
}

func TestRetryBackoff_doublesAndCaps(t *testing.T) {
	base := 30 * time.Second
	max := 15 * time.Minute

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{6, 15 * time.Minute},
		{20, 15 * time.Minute},
	}
	for _, tc := range cases {
		if got := retryBackoff(base, max, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d backoff = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestNextBackoff_capsAtMax(t *testing.T) {
	if got := nextBackoff(2*time.Second, 2*time.Second, 15*time.Minute); got != 4*time.Second {
		t.Fatalf("nextBackoff = %s, want 4s", got)
	}
	if got := nextBackoff(14*time.Minute, 2*time.Second, 15*time.Minute); got != 15*time.Minute {
		t.Fatalf("nextBackoff = %s, want cap", got)
	}
}
