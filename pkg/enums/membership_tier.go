package enums

import "fmt"

// MembershipTier is a seller's plan level. Paid tiers are dispatched earlier
// within the same request but never exclusively.
type MembershipTier string

const (
	MembershipTierBasic      MembershipTier = "basic"
	MembershipTierPremium    MembershipTier = "premium"
	MembershipTierEnterprise MembershipTier = "enterprise"
)

var validMembershipTiers = []MembershipTier{
	MembershipTierBasic,
	MembershipTierPremium,
	MembershipTierEnterprise,
}

// Weight returns the ranking weight for dispatch ordering.
func (t MembershipTier) Weight() int {
	switch t {
	case MembershipTierEnterprise:
		return 3
	case MembershipTierPremium:
		return 2
	case MembershipTierBasic:
		return 1
	}
	return 0
}

// StaggerSteps returns how many stagger delays to apply before dispatching
// to this tier: enterprise goes immediately, basic waits the longest.
func (t MembershipTier) StaggerSteps() int {
	switch t {
	case MembershipTierEnterprise:
		return 0
	case MembershipTierPremium:
		return 1
	case MembershipTierBasic:
		return 2
	}
	return 2
}

// String implements fmt.Stringer.
func (t MembershipTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known MembershipTier.
func (t MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	for _, candidate := range validMembershipTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}
