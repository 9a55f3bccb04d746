package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// Quote is a seller's offer against a delivered queue entry. Exactly one quote
// per request may reach accepted.
type Quote struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID     uuid.UUID         `gorm:"column:request_id;type:uuid;not null;index"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Price         decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Availability  string            `gorm:"column:availability;type:text;not null"`
	DeliveryTime  string            `gorm:"column:delivery_time;type:text;not null"`
	Warranty      *string           `gorm:"column:warranty;type:text"`
	PartCondition *string           `gorm:"column:part_condition;type:text"`
	Notes         *string           `gorm:"column:notes;type:text"`
	Status        enums.QuoteStatus `gorm:"column:status;type:quote_status;not null;default:'pending'"`
	AcceptedAt    *time.Time        `gorm:"column:accepted_at;type:timestamptz"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
