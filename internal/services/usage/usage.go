// Package usage implements the usage ledger: per user, per billing period
// counters of generated stories and premium voice uses.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// maxAttempts bounds the read-increment-write fallback.
const maxAttempts = 3

// Repository stores usage records.
type Repository interface {
	GetOrCreateUsage(ctx context.Context, userID string, start, end time.Time) (models.UsageRecord, error)
	IncrementUsage(ctx context.Context, userID string, start, end time.Time, stories, voices int) (models.UsageRecord, error)
	CompareAndSetUsage(ctx context.Context, prev models.UsageRecord, stories, voices int) (models.UsageRecord, error)
	DeleteUsage(ctx context.Context, userID string) (int64, error)
}

// Ledger reads and records usage for the current billing period.
type Ledger struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger.
func NewLedger(repo Repository, log *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CurrentBillingPeriod returns the period containing the current time.
func (l *Ledger) CurrentBillingPeriod(anchor *time.Time) Period {
	return BillingPeriod(anchor, l.now())
}

// CurrentUsage returns the record of the current period, creating an empty one when absent.
func (l *Ledger) CurrentUsage(ctx context.Context, userID string, anchor *time.Time) (models.UsageRecord, error) {
	const op = "usage.CurrentUsage"
	p := l.CurrentBillingPeriod(anchor)
	rec, err := l.repo.GetOrCreateUsage(ctx, userID, p.Start, p.End)
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// RecordUsage counts one generated story, and one premium voice use when
// delta says so, against the current period.
func (l *Ledger) RecordUsage(ctx context.Context, userID string, delta models.UsageDelta, anchor *time.Time) (models.UsageRecord, error) {
	const op = "usage.RecordUsage"
	p := l.CurrentBillingPeriod(anchor)
	voices := 0
	if delta.PremiumVoice {
		voices = 1
	}

	rec, err := l.repo.IncrementUsage(ctx, userID, p.Start, p.End, 1, voices)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrConflict) {
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	l.log.Warn("usage upsert conflicted, falling back to compare-and-set",
		slog.String("op", op), slog.String("user_id", userID), sl.Err(err))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var cur models.UsageRecord
		cur, err = l.repo.GetOrCreateUsage(ctx, userID, p.Start, p.End)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return models.UsageRecord{}, fmt.Errorf("%s: %w", op, err)
		}
		rec, err = l.repo.CompareAndSetUsage(ctx, cur, cur.StoriesGenerated+1, cur.PremiumVoicesUsed+voices)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return models.UsageRecord{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return models.UsageRecord{}, fmt.Errorf("%s: gave up after %d attempts: %w", op, maxAttempts, err)
}

// ResetUsage deletes the whole usage history of a user. It returns
// storage.ErrNotFound when there was nothing to delete.
func (l *Ledger) ResetUsage(ctx context.Context, userID string) (int64, error) {
	const op = "usage.ResetUsage"
	n, err := l.repo.DeleteUsage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	l.log.Info("usage history reset", slog.String("user_id", userID), slog.Int64("rows", n))
	return n, nil
}

// Summary is the usage overview shown to a user.
type Summary struct {
	Tier               tiers.Tier `json:"tier"`
	StoriesGenerated   int        `json:"stories_generated"`
	StoriesLimit       int        `json:"stories_limit"`
	PremiumVoicesUsed  int        `json:"premium_voices_used"`
	PremiumVoicesLimit int        `json:"premium_voices_limit"`
	BillingPeriodStart time.Time  `json:"billing_period_start"`
	BillingPeriodEnd   time.Time  `json:"billing_period_end"`
}

// Summarize returns the current period usage of sub's owner next to the limits of its effective tier.
func (l *Ledger) Summarize(ctx context.Context, sub *models.Subscription) (Summary, error) {
	tier := sub.EffectiveTier()
	rec, err := l.CurrentUsage(ctx, sub.UserID, sub.PeriodAnchor())
	if err != nil {
		return Summary{}, err
	}
	limits := tiers.LimitsOf(tier)
	return Summary{
		Tier:               tier,
		StoriesGenerated:   rec.StoriesGenerated,
		StoriesLimit:       limits.MonthlyStories,
		PremiumVoicesUsed:  rec.PremiumVoicesUsed,
		PremiumVoicesLimit: limits.MonthlyPremiumVoices,
		BillingPeriodStart: rec.BillingPeriodStart,
		BillingPeriodEnd:   rec.BillingPeriodEnd,
	}, nil
}
