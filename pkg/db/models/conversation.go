package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the single thread between a buyer and seller for one part
// request. Unique on (request_id, seller_id); created lazily on first quote
// or first message attempt.
type Conversation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID uuid.UUID `gorm:"column:request_id;type:uuid;not null;uniqueIndex:ux_conversations_request_seller,priority:1"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_conversations_request_seller,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
