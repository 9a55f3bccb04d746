package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const jitterWindow = 500 * time.Millisecond

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// WorkerParams configure the dispatch worker.
type WorkerParams struct {
	Config   config.DispatchConfig
	Logger   *logger.Logger
	Queue    queue.Repository
	Notifier Notifier
	Metrics  *metrics.DispatchMetrics
}

// Worker drains the distribution queue in polling cycles: claim a bounded
// batch, notify sellers with bounded concurrency, and commit each entry's
// terminal status independently.
type Worker struct {
	cfg      config.DispatchConfig
	logg     *logger.Logger
	queue    queue.Repository
	notifier Notifier
	metrics  *metrics.DispatchMetrics
}

// NewWorker validates dependencies and builds a worker.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Queue == nil {
		return nil, errors.New("queue repository is required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	cfg := params.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.NotifierTimeout <= 0 {
		cfg.NotifierTimeout = 10 * time.Second
	}
	if cfg.StaleClaimAfter <= 0 {
		cfg.StaleClaimAfter = 5 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 15 * time.Minute
	}

	return &Worker{
		cfg:      cfg,
		logg:     params.Logger,
		queue:    params.Queue,
		notifier: params.Notifier,
		metrics:  params.Metrics,
	}, nil
}

// Run polls until the context is canceled. A batch in flight when
// cancellation arrives finishes its cycle; nothing new is claimed after.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	interval := w.cfg.PollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "dispatch worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := w.runCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logg.Error(ctx, "dispatch cycle error", err)
			backoff = nextBackoff(backoff, interval, w.cfg.BackoffMax)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}
		if err := sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// runCycle claims one batch and fans out notifications. Returns true when
// entries were processed so the caller can skip the idle sleep.
func (w *Worker) runCycle(ctx context.Context) (bool, error) {
	now := time.Now().UTC()

	if expired, err := w.queue.ExpireStale(ctx, now); err != nil {
		return false, fmt.Errorf("expire stale entries: %w", err)
	} else if expired > 0 {
		w.logg.Info(w.logg.WithField(ctx, "expired", expired), "expired stale queue entries")
	}

	entries, err := w.queue.ClaimBatch(ctx, queue.ClaimParams{
		Limit:       w.cfg.BatchSize,
		Now:         now,
		StaleBefore: now.Add(-w.cfg.StaleClaimAfter),
	})
	if err != nil {
		return false, fmt.Errorf("claim batch: %w", err)
	}

	w.metrics.ObserveBatchSize(len(entries))
	if len(entries) == 0 {
		w.observeDepth(ctx)
		return false, nil
	}

	// Detached from the poll context so cancellation drains the claimed
	// batch instead of abandoning processing entries.
	batchCtx := context.WithoutCancel(ctx)

	group, groupCtx := errgroup.WithContext(batchCtx)
	group.SetLimit(w.cfg.Concurrency)
	for _, entry := range entries {
		group.Go(func() error {
			w.processEntry(groupCtx, entry)
			return nil
		})
	}
	_ = group.Wait()

	w.observeDepth(ctx)
	return true, nil
}

func (w *Worker) processEntry(ctx context.Context, entry queue.ClaimedEntry) {
	entryCtx := w.logg.WithFields(ctx, map[string]any{
		"queue_entry_id": entry.ID.String(),
		"request_id":     entry.RequestID.String(),
		"seller_id":      entry.SellerID.String(),
		"attempt":        entry.Attempts + 1,
	})

	notifyCtx, cancel := context.WithTimeout(ctx, w.cfg.NotifierTimeout)
	defer cancel()

	start := time.Now()
	err := w.notifier.NotifySeller(notifyCtx, SellerNotification{
		QueueEntryID: entry.ID,
		RequestID:    entry.RequestID,
		SellerID:     entry.SellerID,
		SellerUserID: entry.SellerUserID,
		PartName:     entry.PartName,
		Category:     entry.Category,
		VehicleMake:  entry.VehicleMake,
		VehicleModel: entry.VehicleModel,
		VehicleYear:  entry.VehicleYear,
		Parish:       entry.Parish,
		Urgency:      entry.Urgency,
		Attempt:      entry.Attempts + 1,
	})
	w.metrics.ObserveNotifyDuration(time.Since(start))

	now := time.Now().UTC()
	if err != nil {
		w.recordFailure(entryCtx, entry, err, now)
		return
	}

	updated, markErr := w.queue.MarkDelivered(ctx, entry.ID, now)
	if markErr != nil {
		w.logg.Error(entryCtx, "mark delivered failed", markErr)
		return
	}
	if !updated {
		// Another worker reclaimed this entry as stale; its outcome wins.
		w.logg.Warn(w.logg.WithField(entryCtx, "error_code", string(pkgerrors.CodeStaleClaim)), "delivery commit lost to stale reclaim")
		return
	}
	w.metrics.IncDelivered(entry.MembershipTier.String())
	w.logg.Info(entryCtx, "seller notified")
}

func (w *Worker) recordFailure(ctx context.Context, entry queue.ClaimedEntry, notifyErr error, now time.Time) {
	attempts := entry.Attempts + 1
	terminal := attempts >= w.cfg.MaxAttempts

	params := queue.MarkFailedParams{
		ID:        entry.ID,
		Now:       now,
		Terminal:  terminal,
		LastError: notifyErr.Error(),
	}
	if !terminal {
		next := now.Add(retryBackoff(w.cfg.BackoffBase, w.cfg.BackoffMax, attempts))
		params.NextAttemptAt = &next
	}

	updated, err := w.queue.MarkFailed(ctx, params)
	if err != nil {
		w.logg.Error(ctx, "mark failed errored", err)
		return
	}
	if !updated {
		w.logg.Warn(w.logg.WithField(ctx, "error_code", string(pkgerrors.CodeStaleClaim)), "failure commit lost to stale reclaim")
		return
	}

	if terminal {
		w.metrics.IncFailed(entry.MembershipTier.String())
		w.logg.Error(ctx, "seller notification exhausted attempts", notifyErr)
		return
	}
	w.metrics.IncRetried()
	w.logg.Warn(w.logg.WithField(ctx, "error", notifyErr.Error()), "seller notification failed; retry scheduled")
}

func (w *Worker) observeDepth(ctx context.Context) {
	histogram, err := w.queue.StatusHistogram(ctx, nil)
	if err != nil {
		w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "queue depth read failed")
		return
	}
	for status, count := range histogram {
		w.metrics.SetQueueDepth(status.String(), count)
	}
}

// retryBackoff doubles per attempt starting from base, capped at max.
func retryBackoff(base, max time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
