package conversations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service manages the single conversation per (request, seller) pair.
type Service interface {
	Open(ctx context.Context, tx *gorm.DB, requestID, buyerID, sellerID uuid.UUID) (*models.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ParticipantRole(ctx context.Context, conversation *models.Conversation, userID uuid.UUID) (string, error)
}

type sellerLookup interface {
	SellerUserID(ctx context.Context, sellerID uuid.UUID) (uuid.UUID, error)
}

type service struct {
	repo    Repository
	sellers sellerLookup
}

// NewService wires conversation dependencies.
func NewService(repo Repository, sellers sellerLookup) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations repository required")
	}
	if sellers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "seller lookup required")
	}
	return &service{repo: repo, sellers: sellers}, nil
}

// Open returns the pair's conversation, creating it on first use. Safe to
// call from both the first-quote and first-message paths concurrently.
func (s *service) Open(ctx context.Context, tx *gorm.DB, requestID, buyerID, sellerID uuid.UUID) (*models.Conversation, error) {
	if requestID == uuid.Nil || buyerID == uuid.Nil || sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request, buyer and seller ids required")
	}
	conversation, err := s.repo.WithTx(tx).Upsert(ctx, &models.Conversation{
		RequestID: requestID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert conversation")
	}
	return conversation, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	conversation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	return conversation, nil
}

// ParticipantRole resolves which side of the conversation the user is on,
// or rejects outsiders.
func (s *service) ParticipantRole(ctx context.Context, conversation *models.Conversation, userID uuid.UUID) (string, error) {
	if conversation == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "conversation required")
	}
	if conversation.BuyerID == userID {
		return "buyer", nil
	}
	sellerUserID, err := s.sellers.SellerUserID(ctx, conversation.SellerID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve seller user")
	}
	if sellerUserID == userID {
		return "seller", nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this conversation")
}
