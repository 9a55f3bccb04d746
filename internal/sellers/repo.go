package sellers

import (
	"context"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes the read-only seller profile lookups the engine needs.
// Profile CRUD lives outside this service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SellerProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerProfile, error)
	SellerUserID(ctx context.Context, sellerID uuid.UUID) (uuid.UUID, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a sellers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.SellerProfile, error) {
	var seller models.SellerProfile
	if err := r.db.WithContext(ctx).First(&seller, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *repositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerProfile, error) {
	var seller models.SellerProfile
	if err := r.db.WithContext(ctx).First(&seller, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *repositoryImpl) SellerUserID(ctx context.Context, sellerID uuid.UUID) (uuid.UUID, error) {
	seller, err := r.GetByID(ctx, sellerID)
	if err != nil {
		return uuid.Nil, err
	}
	return seller.UserID, nil
}
