package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for part requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PartRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PartRequest, error)
	MarkFulfilled(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error)
	ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PartRequest, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a requests repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.PartRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.PartRequest, error) {
	var request models.PartRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// MarkFulfilled transitions open to fulfilled. Returns false when the request
// was no longer open, which the accept path treats as a duplicate acceptance.
func (r *repositoryImpl) MarkFulfilled(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PartRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusOpen).
		Updates(map[string]any{
			"status":       enums.RequestStatusFulfilled,
			"fulfilled_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkExpired(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PartRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusOpen).
		Updates(map[string]any{
			"status":         enums.RequestStatusExpired,
			"expired_reason": reason,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PartRequest, error) {
	var rows []models.PartRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.RequestStatusOpen, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
