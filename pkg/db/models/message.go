package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// Message is an append-only conversation entry. Only the status column ever
// mutates, and only forward (see enums.MessageStatus).
type Message struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID           `gorm:"column:conversation_id;type:uuid;not null;index:ix_messages_conversation_created"`
	SenderID       uuid.UUID           `gorm:"column:sender_id;type:uuid;not null"`
	Sender         enums.SenderRole    `gorm:"column:sender;type:sender_role;not null"`
	Text           string              `gorm:"column:text;type:text;not null"`
	Status         enums.MessageStatus `gorm:"column:status;type:message_status;not null;default:'sent'"`
	DeliveredAt    *time.Time          `gorm:"column:delivered_at;type:timestamptz"`
	ReadAt         *time.Time          `gorm:"column:read_at;type:timestamptz"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime;index:ix_messages_conversation_created"`
}
