package models

import "time"

// UsageRecord counts metered actions of one user in one billing period.
type UsageRecord struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	BillingPeriodStart time.Time `json:"billing_period_start"`
	BillingPeriodEnd   time.Time `json:"billing_period_end"`
	StoriesGenerated   int       `json:"stories_generated"`
	PremiumVoicesUsed  int       `json:"premium_voices_used"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UsageDelta describes one completed story generation.
type UsageDelta struct {
	PremiumVoice bool `json:"used_premium_voice"`
}
