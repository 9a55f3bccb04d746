package conversations

import (
	"context"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence helpers for conversations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetByPair(ctx context.Context, requestID, sellerID uuid.UUID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a conversations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Upsert creates the conversation for a (request, seller) pair exactly once.
// ON CONFLICT DO NOTHING plus a re-read means concurrent first-quote and
// first-message attempts converge on the same row.
func (r *repositoryImpl) Upsert(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}, {Name: "seller_id"}},
			DoNothing: true,
		}).
		Create(conversation).Error
	if err != nil {
		return nil, err
	}
	return r.GetByPair(ctx, conversation.RequestID, conversation.SellerID)
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repositoryImpl) GetByPair(ctx context.Context, requestID, sellerID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND seller_id = ?", requestID, sellerID).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repositoryImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id IN (SELECT id FROM seller_profiles WHERE user_id = ?)", userID, userID).
		Order("created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
