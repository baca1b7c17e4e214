package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

// EnsureUser inserts the user together with its default subscription unless
// the user already exists. It reports whether a row was created.
func (s *Storage) EnsureUser(ctx context.Context, user models.User, sub models.Subscription) (bool, error) {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	role := user.Role
	if role == "" {
		role = "user"
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, role) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Email, role)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, tier, status) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		sub.UserID, string(sub.Tier), string(sub.Status))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inserted == 1, nil
}

// GetUser returns the user by id.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var u models.User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, role, created_at FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, nil
}
