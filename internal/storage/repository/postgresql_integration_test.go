package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

func TestIntegration_Storage(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	factory := NewTestDataFactory(s)

	t.Run("ensure user is idempotent", func(t *testing.T) {
		factory.CreateUser(t, "user-a", "a@example.com")

		created, err := s.EnsureUser(ctx, models.User{ID: "user-a", Email: "a@example.com"},
			models.NewFreeSubscription("user-a"))
		require.NoError(t, err)
		assert.False(t, created)

		sub, err := s.GetSubscription(ctx, "user-a")
		require.NoError(t, err)
		assert.Equal(t, tiers.Free, sub.Tier)
		assert.Equal(t, models.StatusCanceled, sub.Status)
	})

	t.Run("save and load by customer", func(t *testing.T) {
		factory.CreateUser(t, "user-b", "b@example.com")
		start, end := day(2025, time.March, 15), day(2025, time.April, 15)
		pending := tiers.DreamWeaver

		sub := &models.Subscription{
			UserID:                 "user-b",
			Tier:                   tiers.MagicCircle,
			Status:                 models.StatusActive,
			PeriodStart:            &start,
			PeriodEnd:              &end,
			ProviderSubscriptionID: "sub_b",
			ProviderCustomerID:     "cus_b",
			PendingTier:            &pending,
		}
		require.NoError(t, s.SaveSubscription(ctx, sub))
		assert.False(t, sub.UpdatedAt.IsZero())

		got, err := s.GetSubscriptionByCustomer(ctx, "cus_b")
		require.NoError(t, err)
		assert.Equal(t, "user-b", got.UserID)
		assert.Equal(t, tiers.MagicCircle, got.Tier)
		require.NotNil(t, got.PendingTier)
		assert.Equal(t, tiers.DreamWeaver, *got.PendingTier)
		assert.True(t, got.PeriodStart.Equal(start))

		_, err = s.GetSubscriptionByCustomer(ctx, "cus_unknown")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		factory.CreateUser(t, "user-c", "c@example.com")
		start, end := day(2025, time.March, 1), time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(voice int) {
				defer wg.Done()
				_, err := s.IncrementUsage(ctx, "user-c", start, end, 1, voice)
				errs <- err
			}(i % 2)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := s.GetOrCreateUsage(ctx, "user-c", start, end)
		require.NoError(t, err)
		assert.Equal(t, workers, rec.StoriesGenerated)
		assert.Equal(t, workers/2, rec.PremiumVoicesUsed)
		assert.Equal(t, 1, factory.CountUsageRows(t, "user-c"))
		assert.Equal(t, day(2025, time.March, 31), rec.BillingPeriodEnd)
	})

	t.Run("periods are isolated and reset deletes history", func(t *testing.T) {
		factory.CreateUser(t, "user-d", "d@example.com")
		p1s, p1e := day(2025, time.January, 15), day(2025, time.February, 14)
		p2s, p2e := day(2025, time.February, 15), day(2025, time.March, 14)

		for i := 0; i < 3; i++ {
			_, err := s.IncrementUsage(ctx, "user-d", p1s, p1e, 1, 0)
			require.NoError(t, err)
		}
		rec, err := s.GetOrCreateUsage(ctx, "user-d", p2s, p2e)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.StoriesGenerated)

		n, err := s.DeleteUsage(ctx, "user-d")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("subscriptions ending", func(t *testing.T) {
		factory.CreateUser(t, "user-e", "e@example.com")
		end := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
		require.NoError(t, s.SaveSubscription(ctx, &models.Subscription{
			UserID: "user-e", Tier: tiers.DreamWeaver, Status: models.StatusActive,
			PeriodEnd: &end, CancelAtPeriodEnd: true, ProviderCustomerID: "cus_e", ProviderSubscriptionID: "sub_e",
		}))

		found, err := s.FindSubscriptionsEnding(ctx, time.Now(), time.Now().Add(72*time.Hour))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "e@example.com", found[0].Email)
		assert.Equal(t, models.NotificationSubscriptionEnding, found[0].Kind)
	})

	t.Run("tier limits mirror", func(t *testing.T) {
		require.NoError(t, s.SyncTierLimits(ctx, tiers.All()))
		require.NoError(t, s.SyncTierLimits(ctx, tiers.All()))

		var stories int
		err := s.DB.QueryRow(`SELECT monthly_stories FROM tier_limits WHERE tier = 'magic_circle'`).Scan(&stories)
		require.NoError(t, err)
		assert.Equal(t, 30, stories)
	})
}
