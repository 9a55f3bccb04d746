package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
)

// Service aggregates operational state for the admin surfaces. Strictly
// read-only: viewing never mutates queue or conversation state.
type Service interface {
	QueueStats(ctx context.Context) (*queue.Stats, error)
	SuccessfulRequests(ctx context.Context, limit int) ([]SuccessfulRequest, error)
	RequestTrace(ctx context.Context, requestID uuid.UUID) ([]TraceRow, error)
}

type service struct {
	repo  Repository
	queue queue.Service
}

// NewService wires monitor dependencies.
func NewService(repo Repository, queueSvc queue.Service) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "monitor repository required")
	}
	if queueSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue service required")
	}
	return &service{repo: repo, queue: queueSvc}, nil
}

func (s *service) QueueStats(ctx context.Context) (*queue.Stats, error) {
	return s.queue.Stats(ctx, time.Now().UTC())
}

func (s *service) SuccessfulRequests(ctx context.Context, limit int) ([]SuccessfulRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.repo.SuccessfulRequests(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list successful requests")
	}
	return rows, nil
}

func (s *service) RequestTrace(ctx context.Context, requestID uuid.UUID) ([]TraceRow, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	rows, err := s.repo.RequestTrace(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request trace")
	}
	return rows, nil
}
