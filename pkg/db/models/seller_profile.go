package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// SellerProfile carries the attributes eligibility and ranking read. The rest
// of the seller profile is managed by the CRUD surface outside this service.
type SellerProfile struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BusinessName    string                   `gorm:"column:business_name;type:text;not null"`
	VerifiedStatus  enums.VerificationStatus `gorm:"column:verified_status;type:verification_status;not null;default:'pending'"`
	MembershipTier  enums.MembershipTier     `gorm:"column:membership_tier;type:membership_tier;not null;default:'basic'"`
	Specializations []string                 `gorm:"column:specializations;type:jsonb;serializer:json"`
	VehicleBrands   []string                 `gorm:"column:vehicle_brands;type:jsonb;serializer:json"`
	Parish          string                   `gorm:"column:parish;type:text;not null"`
	IslandWide      bool                     `gorm:"column:island_wide;not null;default:false"`
	AverageRating   float64                  `gorm:"column:average_rating;not null;default:0"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
