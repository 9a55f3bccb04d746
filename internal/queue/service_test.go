package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/internal/ranking"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
)

type fakeRepo struct {
	created []*models.QueueEntry

	histogram      map[enums.QueueStatus]int64
	todayHistogram map[enums.QueueStatus]int64

	feedLimit int
	feed      []SellerEntry
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) CreateBatch(ctx context.Context, entries []*models.QueueEntry) error {
	f.created = append(f.created, entries...)
	return nil
}

func (f *fakeRepo) ClaimBatch(ctx context.Context, params ClaimParams) ([]ClaimedEntry, error) {
	return nil, nil
}

func (f *fakeRepo) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return false, nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, params MarkFailedParams) (bool, error) {
	return false, nil
}

func (f *fakeRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) ExpireForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) GetByRequestSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.QueueEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.QueueEntry, error) {
	return nil, nil
}

func (f *fakeRepo) ListSellerEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]SellerEntry, error) {
	f.feedLimit = limit
	return f.feed, nil
}

func (f *fakeRepo) StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error) {
	if since != nil {
		return f.todayHistogram, nil
	}
	return f.histogram, nil
}

func TestGenerateForRequest_oneEntryPerRankedSeller(t *testing.T) {
	repo := &fakeRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(72 * time.Hour)
	request := &models.PartRequest{ID: uuid.New(), ExpiresAt: expires}

	first := uuid.New()
	second := uuid.New()
	ranked := []ranking.RankedSeller{
		{Seller: models.SellerProfile{ID: first}, PriorityScore: 31, DispatchDelay: 0},
		{Seller: models.SellerProfile{ID: second}, PriorityScore: 22, DispatchDelay: 10 * time.Minute},
	}

	entries, err := svc.GenerateForRequest(context.Background(), nil, request, ranked, now)
	if err != nil {
		t.Fatalf("GenerateForRequest: %v", err)
	}
	if len(entries) != 2 || len(repo.created) != 2 {
		t.Fatalf("entries = %d created = %d, want 2/2", len(entries), len(repo.created))
	}
	if entries[0].SellerID != first || entries[1].SellerID != second {
		t.Fatal("entries must follow rank order")
	}
	if entries[0].Status != enums.QueueStatusPending {
		t.Fatalf("status = %s, want pending", entries[0].Status)
	}
	if !entries[0].DispatchAfter.Equal(now) {
		t.Fatalf("first dispatch = %s, want immediate", entries[0].DispatchAfter)
	}
	if !entries[1].DispatchAfter.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("second dispatch = %s, want +10m", entries[1].DispatchAfter)
	}
	if !entries[1].ExpiresAt.Equal(expires) {
		t.Fatal("entry expiry must inherit the request expiry")
	}
}

func TestGenerateForRequest_noSellersIsTypedError(t *testing.T) {
	svc, _ := NewService(&fakeRepo{})

	_, err := svc.GenerateForRequest(context.Background(), nil, &models.PartRequest{ID: uuid.New()}, nil, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNoEligibleSellers {
		t.Fatalf("error = %v, want NO_ELIGIBLE_SELLERS", err)
	}
}

func TestStats_successRateFromDeliveredAndFailed(t *testing.T) {
	repo := &fakeRepo{
		histogram: map[enums.QueueStatus]int64{
			enums.QueueStatusPending:   5,
			enums.QueueStatusDelivered: 30,
			enums.QueueStatusFailed:    10,
		},
		todayHistogram: map[enums.QueueStatus]int64{
			enums.QueueStatusDelivered: 3,
		},
	}
	svc, _ := NewService(repo)

	stats, err := svc.Stats(context.Background(), time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 45 {
		t.Fatalf("total = %d, want 45", stats.Total)
	}
	if stats.Today != 3 {
		t.Fatalf("today = %d, want 3", stats.Today)
	}
	if stats.SuccessRate != 0.75 {
		t.Fatalf("success rate = %v, want 0.75", stats.SuccessRate)
	}
}

func TestStats_zeroOutcomesMeansZeroRate(t *testing.T) {
	repo := &fakeRepo{
		histogram:      map[enums.QueueStatus]int64{enums.QueueStatusPending: 4},
		todayHistogram: map[enums.QueueStatus]int64{},
	}
	svc, _ := NewService(repo)

	stats, err := svc.Stats(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("success rate = %v, want 0", stats.SuccessRate)
	}
}

func TestSellerFeed_normalizesLimit(t *testing.T) {
	repo := &fakeRepo{feed: []SellerEntry{{}}}
	svc, _ := NewService(repo)

	if _, err := svc.SellerFeed(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("SellerFeed: %v", err)
	}
	if repo.feedLimit != 50 {
		t.Fatalf("limit = %d, want default 50", repo.feedLimit)
	}

	if _, err := svc.SellerFeed(context.Background(), uuid.New(), 1000); err != nil {
		t.Fatalf("SellerFeed: %v", err)
	}
	if repo.feedLimit != 50 {
		t.Fatalf("limit = %d, want clamp to default", repo.feedLimit)
	}

	if _, err := svc.SellerFeed(context.Background(), uuid.Nil, 10); err == nil {
		t.Fatal("nil seller id must fail")
	}
}
