package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for queue entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, entries []*models.QueueEntry) error
	ClaimBatch(ctx context.Context, params ClaimParams) ([]ClaimedEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, params MarkFailedParams) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	ExpireForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (int64, error)
	GetByRequestSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.QueueEntry, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.QueueEntry, error)
	ListSellerEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]SellerEntry, error)
	StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error)
}

// ClaimParams bounds a single claim cycle.
type ClaimParams struct {
	Limit       int
	Now         time.Time
	StaleBefore time.Time
}

// MarkFailedParams records the outcome of a failed delivery attempt. When
// Terminal is set the entry goes to failed for good; otherwise it returns to
// pending with NextAttemptAt scheduling the retry.
type MarkFailedParams struct {
	ID            uuid.UUID
	Now           time.Time
	NextAttemptAt *time.Time
	Terminal      bool
	LastError     string
}

// ClaimedEntry is a queue entry joined with the request and seller columns the
// dispatcher needs to build a notification.
type ClaimedEntry struct {
	models.QueueEntry
	PartName       string               `gorm:"column:part_name"`
	Category       string               `gorm:"column:category"`
	VehicleMake    string               `gorm:"column:vehicle_make"`
	VehicleModel   string               `gorm:"column:vehicle_model"`
	VehicleYear    int                  `gorm:"column:vehicle_year"`
	Parish         string               `gorm:"column:parish"`
	Urgency        enums.RequestUrgency `gorm:"column:urgency"`
	SellerUserID   uuid.UUID            `gorm:"column:seller_user_id"`
	BusinessName   string               `gorm:"column:business_name"`
	MembershipTier enums.MembershipTier `gorm:"column:membership_tier"`
}

// SellerEntry is one row of a seller's request feed.
type SellerEntry struct {
	models.QueueEntry
	PartName     string               `gorm:"column:part_name"`
	Category     string               `gorm:"column:category"`
	VehicleMake  string               `gorm:"column:vehicle_make"`
	VehicleModel string               `gorm:"column:vehicle_model"`
	VehicleYear  int                  `gorm:"column:vehicle_year"`
	Parish       string               `gorm:"column:parish"`
	Urgency      enums.RequestUrgency `gorm:"column:urgency"`
	HasQuoted    bool                 `gorm:"column:has_quoted"`
	TotalQuotes  int64                `gorm:"column:total_quotes"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateBatch(ctx context.Context, entries []*models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

const claimBatchSQL = `
UPDATE queue_entries
SET status = 'processing', claimed_at = @now, updated_at = @now
WHERE id IN (
    SELECT id FROM queue_entries
    WHERE expires_at > @now
      AND (
          (status = 'pending'
             AND dispatch_after <= @now
             AND (next_attempt_at IS NULL OR next_attempt_at <= @now))
          OR (status = 'processing' AND claimed_at < @stale)
      )
    ORDER BY priority_score DESC, created_at ASC
    LIMIT @limit
    FOR UPDATE SKIP LOCKED
)
RETURNING queue_entries.*`

// ClaimBatch atomically moves due pending entries (and stale processing
// entries whose claim is past the staleness threshold) to processing. The
// SKIP LOCKED subquery keeps concurrent workers from ever claiming the same
// entry twice.
func (r *repositoryImpl) ClaimBatch(ctx context.Context, params ClaimParams) ([]ClaimedEntry, error) {
	var claimed []models.QueueEntry
	err := r.db.WithContext(ctx).
		Raw(claimBatchSQL, map[string]any{
			"now":   params.Now,
			"stale": params.StaleBefore,
			"limit": params.Limit,
		}).
		Scan(&claimed).Error
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(claimed))
	for _, entry := range claimed {
		ids = append(ids, entry.ID)
	}
	return r.hydrateClaimed(ctx, ids)
}

const hydrateClaimedSQL = `
SELECT qe.*,
       pr.part_name, pr.category, pr.vehicle_make, pr.vehicle_model,
       pr.vehicle_year, pr.parish, pr.urgency,
       sp.user_id AS seller_user_id, sp.business_name, sp.membership_tier
FROM queue_entries qe
JOIN part_requests pr ON pr.id = qe.request_id
JOIN seller_profiles sp ON sp.id = qe.seller_id
WHERE qe.id IN ?
ORDER BY qe.priority_score DESC, qe.created_at ASC`

func (r *repositoryImpl) hydrateClaimed(ctx context.Context, ids []uuid.UUID) ([]ClaimedEntry, error) {
	var entries []ClaimedEntry
	if err := r.db.WithContext(ctx).Raw(hydrateClaimedSQL, ids).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkDelivered finishes a processing entry. Returns false when the entry was
// no longer processing, which means another worker reclaimed it as stale.
func (r *repositoryImpl) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", id, enums.QueueStatusProcessing).
		Updates(map[string]any{
			"status":       enums.QueueStatusDelivered,
			"attempts":     gorm.Expr("attempts + 1"),
			"processed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, params MarkFailedParams) (bool, error) {
	updates := map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": params.LastError,
		"updated_at": params.Now,
	}
	if params.Terminal {
		updates["status"] = enums.QueueStatusFailed
		updates["processed_at"] = params.Now
	} else {
		updates["status"] = enums.QueueStatusPending
		updates["claimed_at"] = nil
		updates["next_attempt_at"] = params.NextAttemptAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", params.ID, enums.QueueStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireStale transitions every pending/processing entry past its expiry.
func (r *repositoryImpl) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("status IN ? AND expires_at <= ?",
			[]enums.QueueStatus{enums.QueueStatusPending, enums.QueueStatusProcessing}, now).
		Updates(map[string]any{
			"status":       enums.QueueStatusExpired,
			"processed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExpireForRequest expires the undelivered entries of a single request,
// used when the request itself expires.
func (r *repositoryImpl) ExpireForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("request_id = ? AND status IN ?",
			requestID, []enums.QueueStatus{enums.QueueStatusPending, enums.QueueStatusProcessing}).
		Updates(map[string]any{
			"status":       enums.QueueStatusExpired,
			"processed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) GetByRequestSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND seller_id = ?", requestID, sellerID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repositoryImpl) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("priority_score DESC, created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

const sellerEntriesSQL = `
SELECT qe.*,
       pr.part_name, pr.category, pr.vehicle_make, pr.vehicle_model,
       pr.vehicle_year, pr.parish, pr.urgency,
       EXISTS (
           SELECT 1 FROM quotes q
           WHERE q.request_id = qe.request_id AND q.seller_id = qe.seller_id
       ) AS has_quoted,
       (SELECT COUNT(*) FROM quotes q WHERE q.request_id = qe.request_id) AS total_quotes
FROM queue_entries qe
JOIN part_requests pr ON pr.id = qe.request_id
WHERE qe.seller_id = ? AND qe.status = 'delivered' AND pr.status = 'open'
ORDER BY qe.created_at DESC
LIMIT ?`

// ListSellerEntries returns the delivered entries a seller can still quote
// on, joined with request details and quoting state.
func (r *repositoryImpl) ListSellerEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]SellerEntry, error) {
	var entries []SellerEntry
	if err := r.db.WithContext(ctx).Raw(sellerEntriesSQL, sellerID, limit).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repositoryImpl) StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error) {
	type row struct {
		Status enums.QueueStatus
		Count  int64
	}

	query := r.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	histogram := make(map[enums.QueueStatus]int64, len(rows))
	for _, r := range rows {
		histogram[r.Status] = r.Count
	}
	return histogram, nil
}
