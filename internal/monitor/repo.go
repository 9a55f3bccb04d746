package monitor

import (
	"context"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository exposes the read-only aggregation queries behind the admin
// endpoints. It never mutates state.
type Repository interface {
	SuccessfulRequests(ctx context.Context, limit int) ([]SuccessfulRequest, error)
	RequestTrace(ctx context.Context, requestID uuid.UUID) ([]TraceRow, error)
}

// SuccessfulRequest is one fulfilled request with its winning quote and
// conversation activity.
type SuccessfulRequest struct {
	RequestID    uuid.UUID       `gorm:"column:request_id" json:"request_id"`
	PartName     string          `gorm:"column:part_name" json:"part_name"`
	BuyerID      uuid.UUID       `gorm:"column:buyer_id" json:"buyer_id"`
	SellerID     uuid.UUID       `gorm:"column:seller_id" json:"seller_id"`
	BusinessName string          `gorm:"column:business_name" json:"business_name"`
	QuoteID      uuid.UUID       `gorm:"column:quote_id" json:"quote_id"`
	Price        decimal.Decimal `gorm:"column:price" json:"price"`
	MessageCount int64           `gorm:"column:message_count" json:"message_count"`
	TotalQuotes  int64           `gorm:"column:total_quotes" json:"total_quotes"`
}

// TraceRow is one seller's slice of a request's distribution history.
type TraceRow struct {
	SellerID     uuid.UUID          `gorm:"column:seller_id" json:"seller_id"`
	BusinessName string             `gorm:"column:business_name" json:"business_name"`
	QueueStatus  enums.QueueStatus  `gorm:"column:queue_status" json:"queue_status"`
	Attempts     int                `gorm:"column:attempts" json:"attempts"`
	QuoteID      *uuid.UUID         `gorm:"column:quote_id" json:"quote_id,omitempty"`
	QuoteStatus  *enums.QuoteStatus `gorm:"column:quote_status" json:"quote_status,omitempty"`
	MessageCount int64              `gorm:"column:message_count" json:"message_count"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a monitor repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

const successfulRequestsSQL = `
SELECT pr.id AS request_id, pr.part_name, pr.buyer_id,
       q.seller_id, sp.business_name, q.id AS quote_id, q.price,
       COALESCE(mc.message_count, 0) AS message_count,
       (SELECT COUNT(*) FROM quotes WHERE request_id = pr.id) AS total_quotes
FROM part_requests pr
JOIN quotes q ON q.request_id = pr.id AND q.status = 'accepted'
JOIN seller_profiles sp ON sp.id = q.seller_id
LEFT JOIN conversations c ON c.request_id = pr.id AND c.seller_id = q.seller_id
LEFT JOIN LATERAL (
    SELECT COUNT(*) AS message_count FROM messages m WHERE m.conversation_id = c.id
) mc ON TRUE
WHERE pr.status = 'fulfilled'
ORDER BY pr.fulfilled_at DESC
LIMIT ?`

func (r *repositoryImpl) SuccessfulRequests(ctx context.Context, limit int) ([]SuccessfulRequest, error) {
	var rows []SuccessfulRequest
	if err := r.db.WithContext(ctx).Raw(successfulRequestsSQL, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

const requestTraceSQL = `
SELECT qe.seller_id, sp.business_name, qe.status AS queue_status, qe.attempts,
       q.id AS quote_id, q.status AS quote_status,
       COALESCE(mc.message_count, 0) AS message_count
FROM queue_entries qe
JOIN seller_profiles sp ON sp.id = qe.seller_id
LEFT JOIN quotes q ON q.request_id = qe.request_id AND q.seller_id = qe.seller_id
LEFT JOIN conversations c ON c.request_id = qe.request_id AND c.seller_id = qe.seller_id
LEFT JOIN LATERAL (
    SELECT COUNT(*) AS message_count FROM messages m WHERE m.conversation_id = c.id
) mc ON TRUE
WHERE qe.request_id = ?
ORDER BY qe.priority_score DESC, qe.created_at ASC`

func (r *repositoryImpl) RequestTrace(ctx context.Context, requestID uuid.UUID) ([]TraceRow, error) {
	var rows []TraceRow
	if err := r.db.WithContext(ctx).Raw(requestTraceSQL, requestID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
