//go:build db
// +build db

package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("PARTSFINDA_DB_DSN")
	if dsn == "" {
		t.Skip("PARTSFINDA_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

type claimFixture struct {
	conn     *gorm.DB
	request  *models.PartRequest
	seller   *models.SellerProfile
	sellerID uuid.UUID
}

// seedClaimFixture commits a buyer, a seller and an open request so the claim
// join has rows to hydrate. ClaimBatch runs outside transactions, so the
// fixture commits too and cleans up after itself.
func seedClaimFixture(t *testing.T, conn *gorm.DB) *claimFixture {
	t.Helper()

	buyer := &models.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("buyer_%s@example.com", uuid.NewString()),
		Role:  enums.MemberRoleBuyer,
	}
	sellerUser := &models.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("seller_%s@example.com", uuid.NewString()),
		Role:  enums.MemberRoleSeller,
	}
	if err := conn.Create([]*models.User{buyer, sellerUser}).Error; err != nil {
		t.Fatalf("create users: %v", err)
	}

	seller := &models.SellerProfile{
		ID:             uuid.New(),
		UserID:         sellerUser.ID,
		BusinessName:   "Claim Test Auto Parts",
		VerifiedStatus: enums.VerificationStatusVerified,
		MembershipTier: enums.MembershipTierPremium,
		Parish:         "Kingston",
	}
	if err := conn.Create(seller).Error; err != nil {
		t.Fatalf("create seller profile: %v", err)
	}

	request := &models.PartRequest{
		ID:           uuid.New(),
		BuyerID:      buyer.ID,
		PartName:     "Alternator",
		Category:     "electrical",
		VehicleMake:  "Toyota",
		VehicleModel: "Corolla",
		VehicleYear:  2018,
		Parish:       "Kingston",
		Urgency:      enums.RequestUrgencyHigh,
		Status:       enums.RequestStatusOpen,
		ExpiresAt:    time.Now().UTC().Add(72 * time.Hour),
	}
	if err := conn.Create(request).Error; err != nil {
		t.Fatalf("create part request: %v", err)
	}

	t.Cleanup(func() {
		conn.Where("request_id = ?", request.ID).Delete(&models.QueueEntry{})
		conn.Delete(request)
		conn.Delete(seller)
		conn.Delete([]*models.User{buyer, sellerUser})
	})

	return &claimFixture{conn: conn, request: request, seller: seller, sellerID: seller.ID}
}

func (f *claimFixture) createEntry(t *testing.T, entry *models.QueueEntry) *models.QueueEntry {
	t.Helper()
	entry.ID = uuid.New()
	entry.RequestID = f.request.ID
	entry.SellerID = f.sellerID
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = f.request.ExpiresAt
	}
	if err := f.conn.Create(entry).Error; err != nil {
		t.Fatalf("create queue entry: %v", err)
	}
	return entry
}

func TestClaimBatch_concurrentClaimsAreExclusive(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	// The request+seller pair is unique per entry, so each entry gets its
	// own fixture.
	const entries = 6
	fixtures := make([]*claimFixture, 0, entries)
	ids := make(map[uuid.UUID]struct{}, entries)
	for i := 0; i < entries; i++ {
		f := seedClaimFixture(t, conn)
		// Outranks any leftover rows so the batch is exactly these entries.
		entry := f.createEntry(t, &models.QueueEntry{
			PriorityScore: 1000,
			Status:        enums.QueueStatusPending,
			DispatchAfter: now.Add(-time.Minute),
		})
		ids[entry.ID] = struct{}{}
		fixtures = append(fixtures, f)
	}

	params := ClaimParams{
		Limit:       entries,
		Now:         now,
		StaleBefore: now.Add(-5 * time.Minute),
	}

	var wg sync.WaitGroup
	results := make([][]ClaimedEntry, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = repo.ClaimBatch(ctx, params)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("ClaimBatch %d: %v", i, err)
		}
	}

	claimed := make(map[uuid.UUID]struct{})
	for _, batch := range results {
		for _, entry := range batch {
			if _, ok := ids[entry.ID]; !ok {
				continue
			}
			if _, dup := claimed[entry.ID]; dup {
				t.Fatalf("entry %s claimed by both workers", entry.ID)
			}
			claimed[entry.ID] = struct{}{}
			if entry.Status != enums.QueueStatusProcessing {
				t.Fatalf("claimed status = %s, want processing", entry.Status)
			}
			if entry.ClaimedAt == nil {
				t.Fatal("claimed entry must record claimed_at")
			}
			if entry.PartName != "Alternator" {
				t.Fatalf("hydrated part name = %q", entry.PartName)
			}
			if entry.MembershipTier != enums.MembershipTierPremium {
				t.Fatalf("hydrated tier = %s", entry.MembershipTier)
			}
		}
	}
	if len(claimed) != entries {
		t.Fatalf("claimed %d entries, want %d", len(claimed), entries)
	}
}

func TestClaimBatch_reclaimsStaleProcessing(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	f := seedClaimFixture(t, conn)
	staleClaim := now.Add(-10 * time.Minute)
	entry := f.createEntry(t, &models.QueueEntry{
		PriorityScore: 32,
		Status:        enums.QueueStatusProcessing,
		Attempts:      1,
		DispatchAfter: now.Add(-time.Hour),
		ClaimedAt:     &staleClaim,
	})

	params := ClaimParams{
		Limit:       10,
		Now:         now,
		StaleBefore: now.Add(-5 * time.Minute),
	}

	first, err := repo.ClaimBatch(ctx, params)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if len(first) != 1 || first[0].ID != entry.ID {
		t.Fatalf("stale entry not reclaimed: %+v", first)
	}

	// The reclaim refreshed claimed_at, so the entry is no longer stale.
	second, err := repo.ClaimBatch(ctx, params)
	if err != nil {
		t.Fatalf("second ClaimBatch: %v", err)
	}
	for _, reclaimed := range second {
		if reclaimed.ID == entry.ID {
			t.Fatal("fresh claim must not be reclaimed")
		}
	}
}

func TestClaimBatch_skipsUndueAndExpired(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	futureDispatch := seedClaimFixture(t, conn)
	futureDispatch.createEntry(t, &models.QueueEntry{
		PriorityScore: 32,
		Status:        enums.QueueStatusPending,
		DispatchAfter: now.Add(10 * time.Minute),
	})

	futureRetry := seedClaimFixture(t, conn)
	retryAt := now.Add(10 * time.Minute)
	futureRetry.createEntry(t, &models.QueueEntry{
		PriorityScore: 32,
		Status:        enums.QueueStatusPending,
		DispatchAfter: now.Add(-time.Hour),
		NextAttemptAt: &retryAt,
	})

	expired := seedClaimFixture(t, conn)
	expired.createEntry(t, &models.QueueEntry{
		PriorityScore: 32,
		Status:        enums.QueueStatusPending,
		DispatchAfter: now.Add(-time.Hour),
		ExpiresAt:     now.Add(-time.Minute),
	})

	skip := map[uuid.UUID]struct{}{
		futureDispatch.request.ID: {},
		futureRetry.request.ID:    {},
		expired.request.ID:        {},
	}

	claimed, err := repo.ClaimBatch(ctx, ClaimParams{
		Limit:       50,
		Now:         now,
		StaleBefore: now.Add(-5 * time.Minute),
	})
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	for _, entry := range claimed {
		if _, ok := skip[entry.RequestID]; ok {
			t.Fatalf("entry %s must not be claimable", entry.ID)
		}
	}
}
