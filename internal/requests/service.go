package requests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/eligibility"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/ranking"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpiredReasonNoMatch distinguishes a no-match expiry from a TTL expiry so
// the buyer sees why nothing came back.
const (
	ExpiredReasonNoMatch = "no_eligible_sellers"
	ExpiredReasonTTL     = "request_ttl_elapsed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers buyer request submission and the fan-out orchestration.
type Service interface {
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)
	GetForBuyer(ctx context.Context, buyerID, requestID uuid.UUID) (*BuyerView, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// SubmitParams is a validated buyer submission.
type SubmitParams struct {
	BuyerID      uuid.UUID
	PartName     string
	Category     string
	VehicleMake  string
	VehicleModel string
	VehicleYear  int
	Parish       string
	Urgency      enums.RequestUrgency
	Budget       *decimal.Decimal
	Description  *string
}

// SubmitResult reports the created request and its fan-out size. When
// NoMatch is set the request was created but immediately expired because no
// seller was eligible.
type SubmitResult struct {
	Request     *models.PartRequest `json:"request"`
	QueuedCount int                 `json:"queued_count"`
	NoMatch     bool                `json:"no_match"`
}

// BuyerView is the buyer's request detail with per-seller queue state.
type BuyerView struct {
	Request *models.PartRequest `json:"request"`
	Entries []models.QueueEntry `json:"entries"`
}

// ServiceParams wire the request service dependencies.
type ServiceParams struct {
	Config      config.RequestsConfig
	Dispatch    config.DispatchConfig
	Logger      *logger.Logger
	DB          txRunner
	Repo        Repository
	Eligibility eligibility.Service
	Queue       queue.Service
	QueueRepo   queue.Repository
}

type service struct {
	cfg         config.RequestsConfig
	dispatchCfg config.DispatchConfig
	logg        *logger.Logger
	db          txRunner
	repo        Repository
	eligibility eligibility.Service
	queue       queue.Service
	queueRepo   queue.Repository
}

// NewService validates and wires the request service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	if params.Eligibility == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eligibility service required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue service required")
	}
	if params.QueueRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue repository required")
	}
	return &service{
		cfg:         params.Config,
		dispatchCfg: params.Dispatch,
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repo,
		eligibility: params.Eligibility,
		queue:       params.Queue,
		queueRepo:   params.QueueRepo,
	}, nil
}

// Submit creates the request and freezes its fan-out in one transaction:
// resolve the eligible set, rank it, and write one queue entry per seller.
// No eligible sellers expires the request with a buyer-visible no-match
// reason rather than failing the call.
func (s *service) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if params.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if !params.Urgency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid urgency")
	}

	now := time.Now().UTC()
	ttl := s.cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	request := &models.PartRequest{
		BuyerID:      params.BuyerID,
		PartName:     params.PartName,
		Category:     params.Category,
		VehicleMake:  params.VehicleMake,
		VehicleModel: params.VehicleModel,
		VehicleYear:  params.VehicleYear,
		Parish:       params.Parish,
		Urgency:      params.Urgency,
		Budget:       params.Budget,
		Description:  params.Description,
		Status:       enums.RequestStatusOpen,
		ExpiresAt:    now.Add(ttl),
	}

	result := &SubmitResult{Request: request}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create part request")
		}

		sellers, err := s.eligibility.Resolve(ctx, request)
		if err != nil {
			return err
		}
		if len(sellers) == 0 {
			if _, err := repo.MarkExpired(ctx, request.ID, ExpiredReasonNoMatch, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire no-match request")
			}
			request.Status = enums.RequestStatusExpired
			reason := ExpiredReasonNoMatch
			request.ExpiredReason = &reason
			result.NoMatch = true
			return nil
		}

		ranked := ranking.Rank(request, sellers, s.dispatchCfg.TierStaggerDelay)
		entries, err := s.queue.GenerateForRequest(ctx, tx, request, ranked, now)
		if err != nil {
			return err
		}
		result.QueuedCount = len(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	reqCtx := s.logg.WithPartRequestID(ctx, request.ID.String())
	if result.NoMatch {
		s.logg.Warn(reqCtx, "part request expired with no eligible sellers")
	} else {
		s.logg.Info(s.logg.WithField(reqCtx, "queued", result.QueuedCount), "part request fanned out")
	}
	return result, nil
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, requestID uuid.UUID) (*BuyerView, error) {
	if buyerID == uuid.Nil || requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and request ids required")
	}

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part request")
	}
	if request.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another buyer")
	}

	entries, err := s.queueRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list queue entries")
	}
	return &BuyerView{Request: request, Entries: entries}, nil
}

// ExpireDue expires open requests whose TTL elapsed along with their
// undelivered queue entries. Called by the cron request-ttl job.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListExpiredOpen(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due requests")
	}

	expired := 0
	for _, request := range due {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			updated, err := s.repo.WithTx(tx).MarkExpired(ctx, request.ID, ExpiredReasonTTL, now)
			if err != nil {
				return err
			}
			if !updated {
				return nil
			}
			if _, err := s.queueRepo.WithTx(tx).ExpireForRequest(ctx, request.ID, now); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire request")
		}
	}
	return expired, nil
}
