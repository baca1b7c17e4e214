package models

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusTrialing   Status = "trialing"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

// legacyStatuses maps the pre-consolidation vocabulary still present in old
// rows. Only ParseStatus consults it.
var legacyStatuses = map[string]Status{
	"premium": StatusActive,
	"trial":   StatusTrialing,
	"free":    StatusCanceled,
}

// ParseStatus reads a stored status, translating legacy values.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return st, nil
	}
	if st, ok := legacyStatuses[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("models: unknown subscription status %q", s)
}

// GrantsAccess reports whether the stored tier is honoured in this state.
// past_due keeps access while the provider retries the invoice.
func (s Status) GrantsAccess() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	default:
		return false
	}
}

// Subscription is the billing state of one user.
type Subscription struct {
	UserID                 string      `json:"user_id"`
	Tier                   tiers.Tier  `json:"tier"`
	Status                 Status      `json:"status"`
	PeriodStart            *time.Time  `json:"current_period_start,omitempty"`
	PeriodEnd              *time.Time  `json:"current_period_end,omitempty"`
	ProviderSubscriptionID string      `json:"stripe_subscription_id,omitempty"`
	ProviderCustomerID     string      `json:"stripe_customer_id,omitempty"`
	CancelAtPeriodEnd      bool        `json:"cancel_at_period_end"`
	PendingTier            *tiers.Tier `json:"pending_tier,omitempty"` // downgrade waiting for the next period
	UpdatedAt              time.Time   `json:"updated_at"`
}

// NewFreeSubscription is the record created together with a user.
func NewFreeSubscription(userID string) Subscription {
	return Subscription{
		UserID: userID,
		Tier:   tiers.Free,
		Status: StatusCanceled,
	}
}

// EffectiveTier is the tier entitlements are evaluated against.
func (s *Subscription) EffectiveTier() tiers.Tier {
	if !s.Tier.Valid() || !s.Status.GrantsAccess() {
		return tiers.Free
	}
	return s.Tier
}

// PeriodAnchor is the usage period anchor: the provider period start for paid
// access, nil (calendar month) otherwise.
func (s *Subscription) PeriodAnchor() *time.Time {
	if s.EffectiveTier() == tiers.Free {
		return nil
	}
	return s.PeriodStart
}

// HasLiveSubscription reports whether a provider subscription is attached.
func (s *Subscription) HasLiveSubscription() bool {
	return s.ProviderSubscriptionID != ""
}
