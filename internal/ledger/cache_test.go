package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStatusCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	miniRedis := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatusCache(client, 30*time.Second, time.Hour), miniRedis
}

func TestStatusCacheLock(t *testing.T) {
	cache, miniRedis := setupStatusCache(t)
	ctx := context.Background()

	token, err := cache.Acquire(ctx, "cs_1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 30*time.Second, miniRedis.TTL("checkout:cs_1:lock"))

	second, err := cache.Acquire(ctx, "cs_1")
	require.NoError(t, err)
	assert.Empty(t, second, "lock is already held")

	require.NoError(t, cache.Release(ctx, "cs_1", token))
	assert.False(t, miniRedis.Exists("checkout:cs_1:lock"))
}

func TestStatusCacheReleaseKeepsNewHolder(t *testing.T) {
	cache, miniRedis := setupStatusCache(t)
	ctx := context.Background()

	stale, err := cache.Acquire(ctx, "cs_1")
	require.NoError(t, err)

	// The first holder outlives its TTL and another process takes the lock
	miniRedis.FastForward(31 * time.Second)
	fresh, err := cache.Acquire(ctx, "cs_1")
	require.NoError(t, err)
	require.NotEmpty(t, fresh)
	assert.NotEqual(t, stale, fresh)

	require.NoError(t, cache.Release(ctx, "cs_1", stale))
	got, err := miniRedis.Get("checkout:cs_1:lock")
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	require.NoError(t, cache.Release(ctx, "cs_1", fresh))
	assert.False(t, miniRedis.Exists("checkout:cs_1:lock"))
}

func TestStatusCacheStatus(t *testing.T) {
	cache, _ := setupStatusCache(t)
	ctx := context.Background()

	missing, err := cache.Status(ctx, "cs_1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, cache.MarkApplied(ctx, Result{SessionID: "cs_1", UserID: "u1", Credits: 10, Balance: 13, Outcome: OutcomeApplied}))
	got, err := cache.Status(ctx, "cs_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 13, got.Balance)
}
