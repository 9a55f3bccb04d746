package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

func TestScore_urgencyDominatesTier(t *testing.T) {
	high := &models.PartRequest{Urgency: enums.RequestUrgencyHigh}
	low := &models.PartRequest{Urgency: enums.RequestUrgencyLow}
	basic := &models.SellerProfile{MembershipTier: enums.MembershipTierBasic}
	enterprise := &models.SellerProfile{MembershipTier: enums.MembershipTierEnterprise}

	if got := Score(high, basic); got != 31 {
		t.Fatalf("high/basic score = %d, want 31", got)
	}
	if got := Score(low, enterprise); got != 13 {
		t.Fatalf("low/enterprise score = %d, want 13", got)
	}
	if Score(high, basic) <= Score(low, enterprise) {
		t.Fatal("a high urgency request must outrank a low urgency one regardless of tier")
	}
}

func TestStaggerDelay_perTier(t *testing.T) {
	step := 10 * time.Minute
	cases := []struct {
		tier enums.MembershipTier
		want time.Duration
	}{
		{enums.MembershipTierEnterprise, 0},
		{enums.MembershipTierPremium, 10 * time.Minute},
		{enums.MembershipTierBasic, 20 * time.Minute},
	}
	for _, tc := range cases {
		seller := &models.SellerProfile{MembershipTier: tc.tier}
		if got := StaggerDelay(seller, step); got != tc.want {
			t.Fatalf("%s delay = %s, want %s", tc.tier, got, tc.want)
		}
	}

	seller := &models.SellerProfile{MembershipTier: enums.MembershipTierBasic}
	if got := StaggerDelay(seller, 0); got != 0 {
		t.Fatalf("zero step delay = %s, want 0", got)
	}
}

func TestRank_ordersByScoreThenTiebreakers(t *testing.T) {
	request := &models.PartRequest{Urgency: enums.RequestUrgencyMedium}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	enterprise := seller(enums.MembershipTierEnterprise, 3.0, base)
	premiumHighRating := seller(enums.MembershipTierPremium, 4.8, base)
	premiumLowRating := seller(enums.MembershipTierPremium, 4.1, base)
	basicOld := seller(enums.MembershipTierBasic, 4.5, base.Add(-24*time.Hour))
	basicNew := seller(enums.MembershipTierBasic, 4.5, base)

	ranked := Rank(request, []models.SellerProfile{
		basicNew, premiumLowRating, enterprise, basicOld, premiumHighRating,
	}, 10*time.Minute)

	if len(ranked) != 5 {
		t.Fatalf("ranked %d sellers, want 5", len(ranked))
	}

	wantOrder := []uuid.UUID{
		enterprise.ID, premiumHighRating.ID, premiumLowRating.ID, basicOld.ID, basicNew.ID,
	}
	for i, want := range wantOrder {
		if ranked[i].Seller.ID != want {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].Seller.ID, want)
		}
	}

	if ranked[0].DispatchDelay != 0 {
		t.Fatalf("enterprise delay = %s, want 0", ranked[0].DispatchDelay)
	}
	if ranked[4].DispatchDelay != 20*time.Minute {
		t.Fatalf("basic delay = %s, want 20m", ranked[4].DispatchDelay)
	}
}

func TestRank_idTiebreakerIsDeterministic(t *testing.T) {
	request := &models.PartRequest{Urgency: enums.RequestUrgencyLow}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	a := seller(enums.MembershipTierBasic, 4.0, base)
	b := seller(enums.MembershipTierBasic, 4.0, base)

	first := Rank(request, []models.SellerProfile{a, b}, 0)
	second := Rank(request, []models.SellerProfile{b, a}, 0)

	if first[0].Seller.ID != second[0].Seller.ID {
		t.Fatal("ranking must not depend on input order")
	}
}

func seller(tier enums.MembershipTier, rating float64, createdAt time.Time) models.SellerProfile {
	return models.SellerProfile{
		ID:             uuid.New(),
		MembershipTier: tier,
		AverageRating:  rating,
		CreatedAt:      createdAt,
	}
}
