package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Quote, error)
	HasSellerQuoted(ctx context.Context, requestID, sellerID uuid.UUID) (bool, error)
	Accept(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	RejectOthers(ctx context.Context, requestID, acceptedID uuid.UUID, now time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a quotes repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, quote *models.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repositoryImpl) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Quote, error) {
	var quotes []models.Quote
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repositoryImpl) HasSellerQuoted(ctx context.Context, requestID, sellerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("request_id = ? AND seller_id = ?", requestID, sellerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Accept moves a pending quote to accepted. Returns false when the quote was
// not pending, leaving prior state untouched.
func (r *repositoryImpl) Accept(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", id, enums.QuoteStatusPending).
		Updates(map[string]any{
			"status":      enums.QuoteStatusAccepted,
			"accepted_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) RejectOthers(ctx context.Context, requestID, acceptedID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("request_id = ? AND id <> ? AND status = ?", requestID, acceptedID, enums.QuoteStatusPending).
		Updates(map[string]any{
			"status":     enums.QuoteStatusRejected,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
