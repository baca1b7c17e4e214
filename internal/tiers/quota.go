package tiers

import "fmt"

// Quota names a numeric limit of a tier.
type Quota string

const (
	MonthlyStories       Quota = "monthly_stories"
	MonthlyPremiumVoices Quota = "monthly_premium_voices"
	MaxChildren          Quota = "max_children"
	MaxSavedStories      Quota = "max_saved_stories"
)

// Quotas lists every quota field.
var Quotas = []Quota{MonthlyStories, MonthlyPremiumVoices, MaxChildren, MaxSavedStories}

// Limit returns the value of quota q, which may be Unlimited.
func (l Limits) Limit(q Quota) int {
	switch q {
	case MonthlyStories:
		return l.MonthlyStories
	case MonthlyPremiumVoices:
		return l.MonthlyPremiumVoices
	case MaxChildren:
		return l.MaxChildren
	case MaxSavedStories:
		return l.MaxSavedStories
	default:
		panic(fmt.Sprintf("tiers: unknown quota %q", q))
	}
}

// covers reports whether limit a is at least limit b, with Unlimited above any number.
func covers(a, b int) bool {
	if a == Unlimited {
		return true
	}
	if b == Unlimited {
		return false
	}
	return a >= b
}

// validate checks the catalog invariants: ranks form a strict total order and
// every quota is non-decreasing with rank.
func validate() error {
	all := All()
	for i := 1; i < len(all); i++ {
		lower, higher := all[i-1], all[i]
		if RankOf(lower.Tier) == RankOf(higher.Tier) {
			return fmt.Errorf("tiers: %s and %s share rank %d", lower.Tier, higher.Tier, RankOf(lower.Tier))
		}
		for _, q := range Quotas {
			if !covers(higher.Limits.Limit(q), lower.Limits.Limit(q)) {
				return fmt.Errorf("tiers: %s %s=%d is below %s %s=%d",
					higher.Tier, q, higher.Limits.Limit(q), lower.Tier, q, lower.Limits.Limit(q))
			}
		}
	}
	return nil
}
