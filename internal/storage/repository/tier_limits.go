package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// SyncTierLimits mirrors the compiled-in catalog into tier_limits.
// The table is informational; the code stays authoritative.
func (s *Storage) SyncTierLimits(ctx context.Context, catalog []tiers.Info) error {
	const op = "storage.SyncTierLimits"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO tier_limits (tier, rank, name, monthly_stories, monthly_premium_voices,
			      max_children, max_saved_stories, monthly_price_cents, annual_price_cents, features, synced_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			  ON CONFLICT (tier) DO UPDATE SET
			      rank = EXCLUDED.rank,
			      name = EXCLUDED.name,
			      monthly_stories = EXCLUDED.monthly_stories,
			      monthly_premium_voices = EXCLUDED.monthly_premium_voices,
			      max_children = EXCLUDED.max_children,
			      max_saved_stories = EXCLUDED.max_saved_stories,
			      monthly_price_cents = EXCLUDED.monthly_price_cents,
			      annual_price_cents = EXCLUDED.annual_price_cents,
			      features = EXCLUDED.features,
			      synced_at = now()`
	for _, info := range catalog {
		features, err := json.Marshal(info.Limits.Features)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		l := info.Limits
		if _, err := tx.ExecContext(ctx, query,
			string(info.Tier), tiers.RankOf(info.Tier), info.Name,
			l.MonthlyStories, l.MonthlyPremiumVoices, l.MaxChildren, l.MaxSavedStories,
			info.MonthlyPrice.Amount, info.AnnualPrice.Amount, string(features)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
