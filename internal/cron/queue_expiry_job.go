package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"go.uber.org/multierr"
)

type queueSweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error)
}

// QueueExpiryJobParams configure the queue sweep job.
type QueueExpiryJobParams struct {
	Logger *logger.Logger
	Queue  queueSweeper
}

// NewQueueExpiryJob builds the cron job that expires stale queue entries and
// logs the queue shape. The dispatch worker also expires as it polls; this
// job covers periods when no worker is online.
func NewQueueExpiryJob(params QueueExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("queue repository required")
	}
	return &queueExpiryJob{
		logg:  params.Logger,
		queue: params.Queue,
		now:   time.Now,
	}, nil
}

type queueExpiryJob struct {
	logg  *logger.Logger
	queue queueSweeper
	now   func() time.Time
}

func (j *queueExpiryJob) Name() string { return "queue-expiry" }

func (j *queueExpiryJob) Run(ctx context.Context) error {
	var errs []error

	expired, err := j.queue.ExpireStale(ctx, j.now().UTC())
	if err != nil {
		errs = append(errs, fmt.Errorf("expire stale queue entries: %w", err))
	} else {
		j.logg.Info(j.logg.WithField(ctx, "count", expired), "queue expiry sweep complete")
	}

	histogram, err := j.queue.StatusHistogram(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Errorf("queue histogram: %w", err))
	} else {
		fields := make(map[string]any, len(histogram))
		for status, count := range histogram {
			fields[status.String()] = count
		}
		j.logg.Info(j.logg.WithFields(ctx, fields), "queue status histogram")
	}

	return multierr.Combine(errs...)
}
