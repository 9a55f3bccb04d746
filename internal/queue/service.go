package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/ranking"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service covers queue fan-out and read paths used by the API.
type Service interface {
	GenerateForRequest(ctx context.Context, tx *gorm.DB, request *models.PartRequest, ranked []ranking.RankedSeller, now time.Time) ([]*models.QueueEntry, error)
	SellerFeed(ctx context.Context, sellerID uuid.UUID, limit int) ([]SellerEntry, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

// Stats aggregates queue state for the monitoring endpoints.
type Stats struct {
	Total       int64                       `json:"total"`
	Today       int64                       `json:"today"`
	ByStatus    map[enums.QueueStatus]int64 `json:"by_status"`
	SuccessRate float64                     `json:"success_rate"`
}

type service struct {
	repo Repository
}

// NewService wires queue dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue repository required")
	}
	return &service{repo: repo}, nil
}

// GenerateForRequest freezes the request's fan-out: one entry per ranked
// seller, dispatch time staggered by tier, all inside the caller's
// transaction so a request never ends up with a partial queue.
func (s *service) GenerateForRequest(ctx context.Context, tx *gorm.DB, request *models.PartRequest, ranked []ranking.RankedSeller, now time.Time) ([]*models.QueueEntry, error) {
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part request required")
	}
	if len(ranked) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoEligibleSellers, "no eligible sellers for request")
	}

	entries := make([]*models.QueueEntry, 0, len(ranked))
	for _, candidate := range ranked {
		entries = append(entries, &models.QueueEntry{
			RequestID:     request.ID,
			SellerID:      candidate.Seller.ID,
			PriorityScore: candidate.PriorityScore,
			Status:        enums.QueueStatusPending,
			DispatchAfter: now.Add(candidate.DispatchDelay),
			ExpiresAt:     request.ExpiresAt,
		})
	}

	if err := s.repo.WithTx(tx).CreateBatch(ctx, entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create queue entries")
	}
	return entries, nil
}

func (s *service) SellerFeed(ctx context.Context, sellerID uuid.UUID, limit int) ([]SellerEntry, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	entries, err := s.repo.ListSellerEntries(ctx, sellerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller entries")
	}
	return entries, nil
}

func (s *service) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	histogram, err := s.repo.StatusHistogram(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue histogram")
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayHistogram, err := s.repo.StatusHistogram(ctx, &midnight)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue histogram (today)")
	}

	stats := &Stats{ByStatus: histogram}
	for _, count := range histogram {
		stats.Total += count
	}
	for _, count := range todayHistogram {
		stats.Today += count
	}

	delivered := histogram[enums.QueueStatusDelivered]
	failed := histogram[enums.QueueStatusFailed]
	if delivered+failed > 0 {
		stats.SuccessRate = float64(delivered) / float64(delivered+failed)
	}
	return stats, nil
}
