package eligibility

import (
	"context"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes the seller lookups eligibility needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListVerifiedForParish(ctx context.Context, parish string) ([]models.SellerProfile, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an eligibility repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// ListVerifiedForParish returns verified sellers serving the parish, either
// directly or island-wide. Category and brand matching happens in the service
// since specializations are free-form jsonb lists.
func (r *repositoryImpl) ListVerifiedForParish(ctx context.Context, parish string) ([]models.SellerProfile, error) {
	var sellers []models.SellerProfile
	err := r.db.WithContext(ctx).
		Model(&models.SellerProfile{}).
		Where("verified_status = ?", enums.VerificationStatusVerified).
		Where("parish = ? OR island_wide = TRUE", parish).
		Find(&sellers).Error
	if err != nil {
		return nil, err
	}
	return sellers, nil
}
