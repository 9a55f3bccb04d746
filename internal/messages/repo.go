package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/seangolding876/partsfinda-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *pagination.Cursor, limit int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkRead(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a messages repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByConversation returns messages newest first, walking backwards from
// the cursor when one is given. The secondary id sort keeps ordering stable
// when created_at collides.
func (r *repositoryImpl) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *pagination.Cursor, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if before != nil {
		query = query.Where("(created_at, id) < (?, ?)", before.CreatedAt, before.ID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkDelivered advances sent to delivered. The status guard means a late
// delivery ack can never regress a read message.
func (r *repositoryImpl) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND status = ?", id, enums.MessageStatusSent).
		Updates(map[string]any{
			"status":       enums.MessageStatusDelivered,
			"delivered_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND status IN ?", id,
			[]enums.MessageStatus{enums.MessageStatusSent, enums.MessageStatusDelivered}).
		Updates(map[string]any{
			"status":  enums.MessageStatusRead,
			"read_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
