package requests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/ranking"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	request *models.PartRequest

	expired    []string
	expiredOK  bool
	listedDue  []models.PartRequest
	listLimits []int
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, request *models.PartRequest) error {
	request.ID = uuid.New()
	f.request = request
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PartRequest, error) {
	if f.request == nil || f.request.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.request, nil
}

func (f *fakeRepo) MarkFulfilled(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return false, nil
}

func (f *fakeRepo) MarkExpired(ctx context.Context, id uuid.UUID, reason string, now time.Time) (bool, error) {
	f.expired = append(f.expired, reason)
	return f.expiredOK, nil
}

func (f *fakeRepo) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.PartRequest, error) {
	f.listLimits = append(f.listLimits, limit)
	return f.listedDue, nil
}

type fakeEligibility struct {
	sellers []models.SellerProfile
}

func (f *fakeEligibility) Resolve(ctx context.Context, request *models.PartRequest) ([]models.SellerProfile, error) {
	return f.sellers, nil
}

type fakeQueueSvc struct {
	generated int
}

func (f *fakeQueueSvc) GenerateForRequest(ctx context.Context, tx *gorm.DB, request *models.PartRequest, ranked []ranking.RankedSeller, now time.Time) ([]*models.QueueEntry, error) {
	entries := make([]*models.QueueEntry, len(ranked))
	for i := range ranked {
		entries[i] = &models.QueueEntry{RequestID: request.ID, SellerID: ranked[i].Seller.ID}
	}
	f.generated += len(entries)
	return entries, nil
}

func (f *fakeQueueSvc) SellerFeed(ctx context.Context, sellerID uuid.UUID, limit int) ([]queue.SellerEntry, error) {
	return nil, nil
}

func (f *fakeQueueSvc) Stats(ctx context.Context, now time.Time) (*queue.Stats, error) {
	return &queue.Stats{}, nil
}

type fakeQueueRepo struct {
	entries        []models.QueueEntry
	expiredRequest []uuid.UUID
}

func (f *fakeQueueRepo) WithTx(tx *gorm.DB) queue.Repository { return f }

func (f *fakeQueueRepo) CreateBatch(ctx context.Context, entries []*models.QueueEntry) error {
	return nil
}

func (f *fakeQueueRepo) ClaimBatch(ctx context.Context, params queue.ClaimParams) ([]queue.ClaimedEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return false, nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, params queue.MarkFailedParams) (bool, error) {
	return false, nil
}

func (f *fakeQueueRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeQueueRepo) ExpireForRequest(ctx context.Context, requestID uuid.UUID, now time.Time) (int64, error) {
	f.expiredRequest = append(f.expiredRequest, requestID)
	return 1, nil
}

func (f *fakeQueueRepo) GetByRequestSeller(ctx context.Context, requestID, sellerID uuid.UUID) (*models.QueueEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeQueueRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.QueueEntry, error) {
	return f.entries, nil
}

func (f *fakeQueueRepo) ListSellerEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]queue.SellerEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) StatusHistogram(ctx context.Context, since *time.Time) (map[enums.QueueStatus]int64, error) {
	return nil, nil
}

type requestFixture struct {
	svc       Service
	repo      *fakeRepo
	eligible  *fakeEligibility
	queueSvc  *fakeQueueSvc
	queueRepo *fakeQueueRepo
	buyerID   uuid.UUID
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	f := &requestFixture{
		repo:      &fakeRepo{expiredOK: true},
		eligible:  &fakeEligibility{},
		queueSvc:  &fakeQueueSvc{},
		queueRepo: &fakeQueueRepo{},
		buyerID:   uuid.New(),
	}
	svc, err := NewService(ServiceParams{
		Config:      config.RequestsConfig{DefaultTTL: 72 * time.Hour},
		Dispatch:    config.DispatchConfig{TierStaggerDelay: 10 * time.Minute},
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          fakeTxRunner{},
		Repo:        f.repo,
		Eligibility: f.eligible,
		Queue:       f.queueSvc,
		QueueRepo:   f.queueRepo,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *requestFixture) submitParams() SubmitParams {
	return SubmitParams{
		BuyerID:      f.buyerID,
		PartName:     "Brake pads",
		Category:     "Brakes",
		VehicleMake:  "Toyota",
		VehicleModel: "Corolla",
		VehicleYear:  2018,
		Parish:       "Kingston",
		Urgency:      enums.RequestUrgencyHigh,
	}
}

func TestSubmit_fansOutToEligibleSellers(t *testing.T) {
	f := newRequestFixture(t)
	f.eligible.sellers = []models.SellerProfile{
		{ID: uuid.New(), MembershipTier: enums.MembershipTierPremium},
		{ID: uuid.New(), MembershipTier: enums.MembershipTierBasic},
	}

	result, err := f.svc.Submit(context.Background(), f.submitParams())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.NoMatch {
		t.Fatal("unexpected no-match")
	}
	if result.QueuedCount != 2 {
		t.Fatalf("queued = %d, want 2", result.QueuedCount)
	}
	if result.Request.Status != enums.RequestStatusOpen {
		t.Fatalf("status = %s, want open", result.Request.Status)
	}
	if result.Request.ExpiresAt.Before(time.Now().Add(71 * time.Hour)) {
		t.Fatal("expiry must honor the configured ttl")
	}
}

func TestSubmit_noEligibleSellersExpiresRequest(t *testing.T) {
	f := newRequestFixture(t)

	result, err := f.svc.Submit(context.Background(), f.submitParams())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.NoMatch {
		t.Fatal("expected no-match result")
	}
	if result.Request.Status != enums.RequestStatusExpired {
		t.Fatalf("status = %s, want expired", result.Request.Status)
	}
	if result.Request.ExpiredReason == nil || *result.Request.ExpiredReason != ExpiredReasonNoMatch {
		t.Fatalf("reason = %v, want %s", result.Request.ExpiredReason, ExpiredReasonNoMatch)
	}
	if len(f.repo.expired) != 1 || f.repo.expired[0] != ExpiredReasonNoMatch {
		t.Fatalf("expired = %v", f.repo.expired)
	}
	if f.queueSvc.generated != 0 {
		t.Fatal("a no-match request must not generate queue entries")
	}
}

func TestSubmit_rejectsInvalidUrgency(t *testing.T) {
	f := newRequestFixture(t)
	params := f.submitParams()
	params.Urgency = enums.RequestUrgency("apocalyptic")

	_, err := f.svc.Submit(context.Background(), params)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v", err)
	}
}

func TestGetForBuyer_ownershipEnforced(t *testing.T) {
	f := newRequestFixture(t)
	f.eligible.sellers = []models.SellerProfile{{ID: uuid.New()}}
	result, err := f.svc.Submit(context.Background(), f.submitParams())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.queueRepo.entries = []models.QueueEntry{{RequestID: result.Request.ID}}

	view, err := f.svc.GetForBuyer(context.Background(), f.buyerID, result.Request.ID)
	if err != nil {
		t.Fatalf("GetForBuyer: %v", err)
	}
	if len(view.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(view.Entries))
	}

	_, err = f.svc.GetForBuyer(context.Background(), uuid.New(), result.Request.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestExpireDue_cascadesToQueueEntries(t *testing.T) {
	f := newRequestFixture(t)
	first := models.PartRequest{ID: uuid.New()}
	second := models.PartRequest{ID: uuid.New()}
	f.repo.listedDue = []models.PartRequest{first, second}

	expired, err := f.svc.ExpireDue(context.Background(), time.Now().UTC(), 100)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expired = %d, want 2", expired)
	}
	if len(f.queueRepo.expiredRequest) != 2 {
		t.Fatalf("queue cascades = %d, want 2", len(f.queueRepo.expiredRequest))
	}
	for _, reason := range f.repo.expired {
		if reason != ExpiredReasonTTL {
			t.Fatalf("reason = %s, want %s", reason, ExpiredReasonTTL)
		}
	}
}

func TestExpireDue_skipsAlreadyClosedRequests(t *testing.T) {
	f := newRequestFixture(t)
	f.repo.expiredOK = false
	f.repo.listedDue = []models.PartRequest{{ID: uuid.New()}}

	expired, err := f.svc.ExpireDue(context.Background(), time.Now().UTC(), 100)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expired = %d, want 0", expired)
	}
	if len(f.queueRepo.expiredRequest) != 0 {
		t.Fatal("closed requests must not cascade")
	}
}
