package ranking

import (
	"sort"
	"time"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
)

// RankedSeller pairs a seller with the priority score its queue entry will
// carry and the tier-derived dispatch delay.
type RankedSeller struct {
	Seller        models.SellerProfile
	PriorityScore int
	DispatchDelay time.Duration
}

// Score folds the request urgency and seller tier into a single orderable
// value. Urgency dominates so the global queue drains hot requests first;
// tier orders sellers within a request.
func Score(request *models.PartRequest, seller *models.SellerProfile) int {
	return request.Urgency.Weight()*10 + seller.MembershipTier.Weight()
}

// StaggerDelay returns how long after fan-out a seller's entry becomes
// dispatchable. Enterprise goes immediately, premium after one step, basic
// after two.
func StaggerDelay(seller *models.SellerProfile, step time.Duration) time.Duration {
	if step <= 0 {
		return 0
	}
	return time.Duration(seller.MembershipTier.StaggerSteps()) * step
}

// Rank orders the eligible set highest priority first. Ties break on rating
// (higher first), account age (older first), then seller id so the ordering
// is deterministic. Rank never filters; every input seller appears in the
// output exactly once.
func Rank(request *models.PartRequest, sellers []models.SellerProfile, staggerStep time.Duration) []RankedSeller {
	ranked := make([]RankedSeller, 0, len(sellers))
	for i := range sellers {
		ranked = append(ranked, RankedSeller{
			Seller:        sellers[i],
			PriorityScore: Score(request, &sellers[i]),
			DispatchDelay: StaggerDelay(&sellers[i], staggerStep),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.Seller.AverageRating != b.Seller.AverageRating {
			return a.Seller.AverageRating > b.Seller.AverageRating
		}
		if !a.Seller.CreatedAt.Equal(b.Seller.CreatedAt) {
			return a.Seller.CreatedAt.Before(b.Seller.CreatedAt)
		}
		return a.Seller.ID.String() < b.Seller.ID.String()
	})

	return ranked
}
