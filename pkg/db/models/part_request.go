package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// PartRequest is a buyer's request for a part. Immutable after creation except
// for the system-driven status transitions (fulfilled/expired).
type PartRequest struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	PartName      string               `gorm:"column:part_name;type:text;not null"`
	Category      string               `gorm:"column:category;type:text;not null"`
	VehicleMake   string               `gorm:"column:vehicle_make;type:text;not null"`
	VehicleModel  string               `gorm:"column:vehicle_model;type:text;not null"`
	VehicleYear   int                  `gorm:"column:vehicle_year;not null"`
	Parish        string               `gorm:"column:parish;type:text;not null"`
	Urgency       enums.RequestUrgency `gorm:"column:urgency;type:request_urgency;not null;default:'medium'"`
	Budget        *decimal.Decimal     `gorm:"column:budget;type:numeric(12,2)"`
	Description   *string              `gorm:"column:description;type:text"`
	Status        enums.RequestStatus  `gorm:"column:status;type:request_status;not null;default:'open'"`
	ExpiredReason *string              `gorm:"column:expired_reason;type:text"`
	ExpiresAt     time.Time            `gorm:"column:expires_at;type:timestamptz;not null"`
	FulfilledAt   *time.Time           `gorm:"column:fulfilled_at;type:timestamptz"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
