package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
)

const usageColumns = `id, user_id, billing_period_start, billing_period_end,
	stories_generated, premium_voices_used, created_at, updated_at`

func scanUsage(row rowScanner) (models.UsageRecord, error) {
	var u models.UsageRecord
	err := row.Scan(&u.ID, &u.UserID, &u.BillingPeriodStart, &u.BillingPeriodEnd,
		&u.StoriesGenerated, &u.PremiumVoicesUsed, &u.CreatedAt, &u.UpdatedAt)
	u.BillingPeriodStart = u.BillingPeriodStart.UTC()
	u.BillingPeriodEnd = u.BillingPeriodEnd.UTC()
	return u, err
}

// GetOrCreateUsage returns the usage record of the period starting at start,
// inserting a zeroed one first when absent.
func (s *Storage) GetOrCreateUsage(ctx context.Context, userID string, start, end time.Time) (models.UsageRecord, error) {
	const op = "storage.GetOrCreateUsage"
	select {
	case <-ctx.Done():
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO usage_tracking (id, user_id, billing_period_start, billing_period_end)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, billing_period_start) DO NOTHING`,
		uuid.NewString(), userID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+usageColumns+` FROM usage_tracking
		 WHERE user_id = $1 AND billing_period_start = $2`,
		userID, start.Format(dateLayout))
	rec, err := scanUsage(row)
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return rec, nil
}

// IncrementUsage adds the counters to the period record in one atomic upsert.
func (s *Storage) IncrementUsage(ctx context.Context, userID string, start, end time.Time, stories, voices int) (models.UsageRecord, error) {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO usage_tracking (id, user_id, billing_period_start, billing_period_end,
			      stories_generated, premium_voices_used)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (user_id, billing_period_start) DO UPDATE SET
			      stories_generated = usage_tracking.stories_generated + EXCLUDED.stories_generated,
			      premium_voices_used = usage_tracking.premium_voices_used + EXCLUDED.premium_voices_used,
			      updated_at = now()
			  RETURNING ` + usageColumns
	row := s.DB.QueryRowContext(ctx, query,
		uuid.NewString(), userID, start.Format(dateLayout), end.Format(dateLayout), stories, voices)
	rec, err := scanUsage(row)
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return rec, nil
}

// CompareAndSetUsage overwrites the counters of a record only if they still
// hold the previously read values. A lost race returns storage.ErrConflict.
func (s *Storage) CompareAndSetUsage(ctx context.Context, prev models.UsageRecord, stories, voices int) (models.UsageRecord, error) {
	const op = "storage.CompareAndSetUsage"
	select {
	case <-ctx.Done():
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE usage_tracking
			  SET stories_generated = $4, premium_voices_used = $5, updated_at = now()
			  WHERE id = $1 AND stories_generated = $2 AND premium_voices_used = $3
			  RETURNING ` + usageColumns
	row := s.DB.QueryRowContext(ctx, query,
		prev.ID, prev.StoriesGenerated, prev.PremiumVoicesUsed, stories, voices)
	rec, err := scanUsage(row)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, storage.ErrNotFound) {
			err = storage.ErrConflict
		}
		return models.UsageRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// DeleteUsage removes the whole usage history of a user and returns the number of deleted rows.
func (s *Storage) DeleteUsage(ctx context.Context, userID string) (int64, error) {
	const op = "storage.DeleteUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM usage_tracking WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}
