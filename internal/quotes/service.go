package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/conversations"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/internal/sellers"
	"github.com/seangolding876/partsfinda-backend/pkg/db"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers seller quoting and buyer acceptance.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*CreateResult, error)
	Accept(ctx context.Context, buyerID, quoteID uuid.UUID) (*AcceptResult, error)
}

// CreateParams is a validated seller quote submission. SellerUserID is the
// authenticated user; the seller profile is resolved from it.
type CreateParams struct {
	SellerUserID  uuid.UUID
	RequestID     uuid.UUID
	Price         decimal.Decimal
	Availability  string
	DeliveryTime  string
	Warranty      *string
	PartCondition *string
	Notes         *string
}

// CreateResult returns the stored quote and the conversation it opened.
type CreateResult struct {
	Quote          *models.Quote `json:"quote"`
	ConversationID uuid.UUID     `json:"conversation_id"`
}

// AcceptResult reports the accepted quote, how many rivals were rejected,
// and the conversation between buyer and winning seller.
type AcceptResult struct {
	Quote          *models.Quote `json:"quote"`
	RejectedCount  int64         `json:"rejected_count"`
	ConversationID uuid.UUID     `json:"conversation_id"`
}

// ServiceParams wire the quote service dependencies.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          Repository
	Requests      requests.Repository
	Queue         queue.Repository
	Sellers       sellers.Repository
	Conversations conversations.Service
}

type service struct {
	logg          *logger.Logger
	db            txRunner
	repo          Repository
	requests      requests.Repository
	queue         queue.Repository
	sellers       sellers.Repository
	conversations conversations.Service
}

// NewService validates and wires the quote service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "quotes repository required")
	}
	if params.Requests == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue repository required")
	}
	if params.Sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sellers repository required")
	}
	if params.Conversations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations service required")
	}
	return &service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		requests:      params.Requests,
		queue:         params.Queue,
		sellers:       params.Sellers,
		conversations: params.Conversations,
	}, nil
}

// Create records a quote against a delivered queue entry and lazily opens
// the buyer-seller conversation.
func (s *service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if params.SellerUserID == uuid.Nil || params.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller and request ids required")
	}
	if params.Price.IsNegative() || params.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	seller, err := s.sellers.GetByUserID(ctx, params.SellerUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no seller profile for user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profile")
	}

	request, err := s.requests.GetByID(ctx, params.RequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part request")
	}
	if request.Status != enums.RequestStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is no longer open")
	}

	entry, err := s.queue.GetByRequestSeller(ctx, params.RequestID, seller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request was not distributed to this seller")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load queue entry")
	}
	if entry.Status != enums.QueueStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request not yet delivered to this seller")
	}

	alreadyQuoted, err := s.repo.HasSellerQuoted(ctx, params.RequestID, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing quote")
	}
	if alreadyQuoted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "seller already quoted this request")
	}

	quote := &models.Quote{
		RequestID:     params.RequestID,
		SellerID:      seller.ID,
		Price:         params.Price,
		Availability:  params.Availability,
		DeliveryTime:  params.DeliveryTime,
		Warranty:      params.Warranty,
		PartCondition: params.PartCondition,
		Notes:         params.Notes,
		Status:        enums.QuoteStatusPending,
	}

	result := &CreateResult{Quote: quote}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, quote); err != nil {
			// The unique index catches the race the HasSellerQuoted check misses.
			if db.IsUniqueViolation(err, "ux_quotes_request_seller") {
				return pkgerrors.New(pkgerrors.CodeConflict, "seller already quoted this request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		conversation, err := s.conversations.Open(ctx, tx, params.RequestID, request.BuyerID, seller.ID)
		if err != nil {
			return err
		}
		result.ConversationID = conversation.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"quote_id":   quote.ID.String(),
		"request_id": params.RequestID.String(),
		"seller_id":  seller.ID.String(),
	}), "quote created")
	return result, nil
}

// Accept enforces the single-accepted-quote invariant: the request's
// open→fulfilled transition is the gate, so a second acceptance fails with
// DUPLICATE_QUOTE_ACCEPTANCE and mutates nothing.
func (s *service) Accept(ctx context.Context, buyerID, quoteID uuid.UUID) (*AcceptResult, error) {
	if buyerID == uuid.Nil || quoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and quote ids required")
	}

	quote, err := s.repo.GetByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}

	request, err := s.requests.GetByID(ctx, quote.RequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part request")
	}
	if request.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another buyer")
	}

	now := time.Now().UTC()
	result := &AcceptResult{}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		fulfilled, err := s.requests.WithTx(tx).MarkFulfilled(ctx, quote.RequestID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfill request")
		}
		if !fulfilled {
			return pkgerrors.New(pkgerrors.CodeDuplicateAcceptance, "request already fulfilled")
		}

		repo := s.repo.WithTx(tx)
		accepted, err := repo.Accept(ctx, quoteID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept quote")
		}
		if !accepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quote is not pending")
		}

		rejected, err := repo.RejectOthers(ctx, quote.RequestID, quoteID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject competing quotes")
		}
		result.RejectedCount = rejected

		conversation, err := s.conversations.Open(ctx, tx, quote.RequestID, buyerID, quote.SellerID)
		if err != nil {
			return err
		}
		result.ConversationID = conversation.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	quote.Status = enums.QuoteStatusAccepted
	quote.AcceptedAt = &now
	result.Quote = quote

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"quote_id":   quoteID.String(),
		"request_id": quote.RequestID.String(),
		"rejected":   result.RejectedCount,
	}), "quote accepted")
	return result, nil
}
