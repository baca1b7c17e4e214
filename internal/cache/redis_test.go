package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storytime-billing/internal/config"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := InitServer(context.Background(), config.RedisConnection{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGetSubscription(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupTestCache(t)

	end := time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)
	pending := tiers.DreamWeaver
	expected := models.Subscription{
		UserID:      "u1",
		Tier:        tiers.MagicCircle,
		Status:      models.StatusActive,
		PeriodEnd:   &end,
		PendingTier: &pending,
	}
	require.NoError(t, cache.Set(ctx, "subscription:u1", expected, time.Minute))

	var actual models.Subscription
	found, err := cache.Get(ctx, "subscription:u1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.Tier, actual.Tier)
	assert.Equal(t, expected.Status, actual.Status)
	assert.True(t, end.Equal(*actual.PeriodEnd))
	assert.Equal(t, pending, *actual.PendingTier)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.Subscription
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupTestCache(t)

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out models.Subscription
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestInitServerInvalidAddr(t *testing.T) {
	cache, err := InitServer(context.Background(), config.RedisConnection{
		Address:     "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	assert.Nil(t, cache)
	assert.Error(t, err)
}
