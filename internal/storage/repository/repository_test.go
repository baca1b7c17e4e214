package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

var usageRowColumns = []string{"id", "user_id", "billing_period_start", "billing_period_end",
	"stories_generated", "premium_voices_used", "created_at", "updated_at"}

var subscriptionRowColumns = []string{"user_id", "tier", "status", "current_period_start", "current_period_end",
	"stripe_subscription_id", "stripe_customer_id", "cancel_at_period_end", "pending_tier", "updated_at"}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, storage.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, storage.ErrConflict},
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, storage.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestStorage_IncrementUsage(t *testing.T) {
	now := time.Now().UTC()
	start, end := day(2025, time.March, 15), day(2025, time.April, 14)

	tests := []struct {
		name    string
		mock    func(m sqlmock.Sqlmock)
		want    int
		wantErr error
	}{
		{
			name: "upsert returns incremented row",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("INSERT INTO usage_tracking").
					WithArgs(sqlmock.AnyArg(), "u1", "2025-03-15", "2025-04-14", 1, 1).
					WillReturnRows(sqlmock.NewRows(usageRowColumns).
						AddRow("id-1", "u1", start, end, 3, 1, now, now))
			},
			want: 3,
		},
		{
			name: "unique violation maps to conflict",
			mock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("INSERT INTO usage_tracking").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: storage.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newMockStorage(t)
			tt.mock(m)

			rec, err := s.IncrementUsage(context.Background(), "u1", start, end, 1, 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, rec.StoriesGenerated)
				assert.Equal(t, start, rec.BillingPeriodStart)
			}
			assert.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestStorage_CompareAndSetUsage_LostRace(t *testing.T) {
	s, m := newMockStorage(t)
	m.ExpectQuery("UPDATE usage_tracking").
		WithArgs("id-1", 2, 0, 3, 0).
		WillReturnRows(sqlmock.NewRows(usageRowColumns))

	_, err := s.CompareAndSetUsage(context.Background(),
		models.UsageRecord{ID: "id-1", StoriesGenerated: 2}, 3, 0)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestStorage_GetSubscription(t *testing.T) {
	periodStart := day(2025, time.March, 15)
	updated := time.Now().UTC()

	t.Run("not found", func(t *testing.T) {
		s, m := newMockStorage(t)
		m.ExpectQuery("FROM subscriptions s WHERE s.user_id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetSubscription(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("legacy status is translated", func(t *testing.T) {
		s, m := newMockStorage(t)
		m.ExpectQuery("FROM subscriptions s WHERE s.user_id").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
				AddRow("u1", "magic_circle", "premium", periodStart, nil, "sub_1", "cus_1", false, nil, updated))

		sub, err := s.GetSubscription(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, sub.Status)
		assert.Equal(t, tiers.MagicCircle, sub.Tier)
		require.NotNil(t, sub.PeriodStart)
		assert.Equal(t, periodStart, *sub.PeriodStart)
		assert.Nil(t, sub.PeriodEnd)
		assert.Equal(t, "cus_1", sub.ProviderCustomerID)
		assert.Nil(t, sub.PendingTier)
	})
}

func TestStorage_DeleteUsage(t *testing.T) {
	s, m := newMockStorage(t)
	m.ExpectExec("DELETE FROM usage_tracking").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.DeleteUsage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStorage_CanceledContext(t *testing.T) {
	s, _ := newMockStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
