package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

const subscriptionColumns = `s.user_id, s.tier, s.status, s.current_period_start, s.current_period_end,
	s.stripe_subscription_id, s.stripe_customer_id, s.cancel_at_period_end, s.pending_tier, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                    models.Subscription
		tier, status           string
		periodStart, periodEnd sql.NullTime
		subID, customerID      sql.NullString
		pending                sql.NullString
	)
	if err := row.Scan(&sub.UserID, &tier, &status, &periodStart, &periodEnd,
		&subID, &customerID, &sub.CancelAtPeriodEnd, &pending, &sub.UpdatedAt); err != nil {
		return nil, err
	}

	parsedStatus, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	sub.Status = parsedStatus
	sub.Tier = tiers.Tier(tier)
	if !sub.Tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q for user %s", tier, sub.UserID)
	}
	sub.PeriodStart = timePtr(periodStart)
	sub.PeriodEnd = timePtr(periodEnd)
	sub.ProviderSubscriptionID = subID.String
	sub.ProviderCustomerID = customerID.String
	if pending.Valid {
		p := tiers.Tier(pending.String)
		sub.PendingTier = &p
	}
	return &sub, nil
}

// GetSubscription returns the subscription of a user.
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.user_id = $1`, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// GetSubscriptionByCustomer returns the subscription linked to a billing provider customer.
func (s *Storage) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByCustomer"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.stripe_customer_id = $1`, customerID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// SaveSubscription writes every field of sub, creating the row when missing,
// and sets sub.UpdatedAt.
func (s *Storage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.SaveSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var pending sql.NullString
	if sub.PendingTier != nil {
		pending = sql.NullString{String: string(*sub.PendingTier), Valid: true}
	}

	query := `INSERT INTO subscriptions (user_id, tier, status, current_period_start, current_period_end,
			      stripe_subscription_id, stripe_customer_id, cancel_at_period_end, pending_tier, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			  ON CONFLICT (user_id) DO UPDATE SET
			      tier = EXCLUDED.tier,
			      status = EXCLUDED.status,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			      stripe_customer_id = EXCLUDED.stripe_customer_id,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      pending_tier = EXCLUDED.pending_tier,
			      updated_at = now()
			  RETURNING updated_at`
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, string(sub.Tier), string(sub.Status), nullTime(sub.PeriodStart), nullTime(sub.PeriodEnd),
		nullString(sub.ProviderSubscriptionID), nullString(sub.ProviderCustomerID),
		sub.CancelAtPeriodEnd, pending).Scan(&sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// FindSubscriptionsEnding returns subscriptions scheduled to cancel whose
// period ends in [from, to), joined with the owner's email.
func (s *Storage) FindSubscriptionsEnding(ctx context.Context, from, to time.Time) ([]*models.BillingNotification, error) {
	const op = "storage.FindSubscriptionsEnding"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.user_id, u.email, s.tier, s.current_period_end
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  WHERE s.cancel_at_period_end
			    AND s.current_period_end >= $1
			    AND s.current_period_end < $2
			  ORDER BY s.current_period_end`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.BillingNotification
	for rows.Next() {
		var (
			n   models.BillingNotification
			end time.Time
		)
		if err := rows.Scan(&n.UserID, &n.Email, &n.Tier, &end); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		end = end.UTC()
		n.Kind = models.NotificationSubscriptionEnding
		n.PeriodEnd = &end
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
