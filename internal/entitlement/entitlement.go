// Package entitlement decides whether a user may perform a metered action
// given their tier and current usage.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Ledger provides current period usage.
type Ledger interface {
	CurrentUsage(ctx context.Context, userID string, anchor *time.Time) (models.UsageRecord, error)
}

// Decision is the answer to a story generation request.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Reason     string      `json:"reason,omitempty"`
	StoryCheck QuotaCheck  `json:"story_check"`
	VoiceCheck *QuotaCheck `json:"voice_check,omitempty"`
}

// Evaluator combines the ledger with the tier catalog.
type Evaluator struct {
	ledger Ledger
}

// New creates an Evaluator.
func New(ledger Ledger) *Evaluator {
	return &Evaluator{ledger: ledger}
}

// CanGenerateStory checks the story quota and, when a premium voice is
// requested, the premium voice quota. A denial is a normal Decision.
func (e *Evaluator) CanGenerateStory(ctx context.Context, userID string, tier tiers.Tier, anchor *time.Time, wantsPremiumVoice bool) (Decision, error) {
	const op = "entitlement.CanGenerateStory"

	usage, err := e.ledger.CurrentUsage(ctx, userID, anchor)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	story := CheckQuota(tier, usage.StoriesGenerated, tiers.MonthlyStories)
	observe(story)
	if !story.Allowed {
		return Decision{
			Reason:     fmt.Sprintf("Monthly story limit reached (%d/%d)", story.Limit, story.Limit),
			StoryCheck: story,
		}, nil
	}

	d := Decision{Allowed: true, StoryCheck: story}
	if wantsPremiumVoice {
		voice := CheckQuota(tier, usage.PremiumVoicesUsed, tiers.MonthlyPremiumVoices)
		observe(voice)
		d.VoiceCheck = &voice
		if !voice.Allowed {
			d.Allowed = false
			d.Reason = fmt.Sprintf("Monthly premium voice limit reached (%d/%d)", voice.Limit, voice.Limit)
		}
	}
	return d, nil
}

// CanPerformAction checks a non-metered quota, such as child profiles or saved
// stories, against a count the caller owns.
func (e *Evaluator) CanPerformAction(tier tiers.Tier, q tiers.Quota, current int) QuotaCheck {
	c := CheckQuota(tier, current, q)
	observe(c)
	return c
}

func observe(c QuotaCheck) {
	metrics.EntitlementDecisions.WithLabelValues(string(c.Quota), metrics.Outcome(c.Allowed)).Inc()
}
