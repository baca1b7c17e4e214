package entitlement

import (
	"encoding/json"

	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// QuotaCheck is the outcome of comparing a counter against one quota.
type QuotaCheck struct {
	Quota     tiers.Quota
	Allowed   bool
	Limit     int
	Current   int
	Remaining int
	Unlimited bool
}

// CheckQuota compares current against quota q of tier t. An Unlimited quota
// always allows; a zero quota never does.
func CheckQuota(t tiers.Tier, current int, q tiers.Quota) QuotaCheck {
	limit := tiers.LimitsOf(t).Limit(q)
	if limit == tiers.Unlimited {
		return QuotaCheck{
			Quota:     q,
			Allowed:   true,
			Limit:     tiers.Unlimited,
			Current:   current,
			Remaining: tiers.Unlimited,
			Unlimited: true,
		}
	}
	return QuotaCheck{
		Quota:     q,
		Allowed:   current < limit,
		Limit:     limit,
		Current:   current,
		Remaining: max(0, limit-current),
	}
}

type quotaCheckJSON struct {
	Quota     tiers.Quota `json:"quota"`
	Allowed   bool        `json:"allowed"`
	Limit     any         `json:"limit"`
	Current   int         `json:"current"`
	Remaining any         `json:"remaining"`
}

// MarshalJSON renders unlimited limits as the string "unlimited".
func (c QuotaCheck) MarshalJSON() ([]byte, error) {
	out := quotaCheckJSON{
		Quota:     c.Quota,
		Allowed:   c.Allowed,
		Limit:     c.Limit,
		Current:   c.Current,
		Remaining: c.Remaining,
	}
	if c.Unlimited {
		out.Limit = "unlimited"
		out.Remaining = "unlimited"
	}
	return json.Marshal(out)
}
