package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/metrics"
)

const defaultDrainTimeout = 30 * time.Second

// Runner is the long-running task the supervisor owns, typically the
// dispatch worker's Run.
type Runner func(ctx context.Context) error

// Status is the ephemeral worker report exposed to the control API. It is
// reconstructed from supervisor state on every poll, never persisted.
type Status struct {
	State         enums.WorkerState `json:"state"`
	PID           int               `json:"pid"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	RestartCount  int               `json:"restart_count"`
	LastError     string            `json:"last_error,omitempty"`
}

// Supervisor owns a single worker goroutine and moves it through an explicit
// lifecycle: stopped, starting, running, draining, back to stopped, with
// crashed recorded when the run goroutine panics or returns unexpectedly.
type Supervisor struct {
	mu           sync.Mutex
	state        enums.WorkerState
	runner       Runner
	logg         *logger.Logger
	metrics      *metrics.DispatchMetrics
	cancel       context.CancelFunc
	done         chan struct{}
	startedAt    time.Time
	restartCount int
	lastError    string
	drainTimeout time.Duration
}

// Params configure the supervisor.
type Params struct {
	Runner       Runner
	Logger       *logger.Logger
	Metrics      *metrics.DispatchMetrics
	DrainTimeout time.Duration
}

// New builds a supervisor in the stopped state.
func New(params Params) (*Supervisor, error) {
	if params.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	drain := params.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}
	return &Supervisor{
		state:        enums.WorkerStateStopped,
		runner:       params.Runner,
		logg:         params.Logger,
		metrics:      params.Metrics,
		drainTimeout: drain,
	}, nil
}

// Start launches the worker goroutine. Calling Start while the worker is
// already online is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Online() {
		s.logg.Info(ctx, "worker already online; start is a no-op")
		return nil
	}

	s.setStateLocked(enums.WorkerStateStarting)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.startedAt = time.Now().UTC()
	s.lastError = ""

	go s.run(runCtx, done)

	s.setStateLocked(enums.WorkerStateRunning)
	s.logg.Info(ctx, "dispatch worker started")
	return nil
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.recordCrash(fmt.Sprintf("panic: %v", r))
		}
	}()

	err := s.runner(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		s.setStateLocked(enums.WorkerStateStopped)
	default:
		s.lastError = err.Error()
		s.setStateLocked(enums.WorkerStateCrashed)
	}
}

func (s *Supervisor) recordCrash(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = reason
	s.setStateLocked(enums.WorkerStateCrashed)
}

// Stop cancels the worker and waits for the in-flight batch to drain.
// Stopping an offline worker is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Online() {
		s.mu.Unlock()
		s.logg.Info(ctx, "worker already offline; stop is a no-op")
		return nil
	}
	s.setStateLocked(enums.WorkerStateDraining)
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
	case <-time.After(s.drainTimeout):
		return pkgerrors.New(pkgerrors.CodeDependency, "worker drain timed out")
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logg.Info(ctx, "dispatch worker stopped")
	return nil
}

// Restart is stop-then-start with the restart counter incremented.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.restartCount++
	s.mu.Unlock()
	return s.Start(ctx)
}

// Status reports the current lifecycle state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:        s.state,
		PID:          os.Getpid(),
		RestartCount: s.restartCount,
		LastError:    s.lastError,
	}
	if s.state.Online() && !s.startedAt.IsZero() {
		status.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
	}
	return status
}

func (s *Supervisor) setStateLocked(state enums.WorkerState) {
	s.state = state
	if s.metrics != nil {
		all := []string{
			enums.WorkerStateStopped.String(),
			enums.WorkerStateStarting.String(),
			enums.WorkerStateRunning.String(),
			enums.WorkerStateDraining.String(),
			enums.WorkerStateCrashed.String(),
		}
		s.metrics.SetWorkerState(state.String(), all)
	}
}
