package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// QueueEntry is one request-seller pairing in the distribution queue. The set
// of entries for a request is frozen at fan-out; unique on (request_id,
// seller_id).
type QueueEntry struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID     uuid.UUID         `gorm:"column:request_id;type:uuid;not null;uniqueIndex:ux_queue_entries_request_seller,priority:1"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_queue_entries_request_seller,priority:2"`
	PriorityScore int               `gorm:"column:priority_score;not null"`
	Status        enums.QueueStatus `gorm:"column:status;type:queue_status;not null;default:'pending'"`
	Attempts      int               `gorm:"column:attempts;not null;default:0"`
	DispatchAfter time.Time         `gorm:"column:dispatch_after;type:timestamptz;not null"`
	NextAttemptAt *time.Time        `gorm:"column:next_attempt_at;type:timestamptz"`
	ClaimedAt     *time.Time        `gorm:"column:claimed_at;type:timestamptz"`
	ProcessedAt   *time.Time        `gorm:"column:processed_at;type:timestamptz"`
	ExpiresAt     time.Time         `gorm:"column:expires_at;type:timestamptz;not null"`
	LastError     *string           `gorm:"column:last_error;type:text"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
