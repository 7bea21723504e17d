//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLock(t *testing.T) {
	client := newRedisClient(t)
	l := NewRedis(client, WithTTL(time.Second), WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "12345678")
	require.NoError(t, err)

	t.Run("second holder waits", func(t *testing.T) {
		wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := l.Lock(wctx, "12345678")
		require.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("other keys are independent", func(t *testing.T) {
		other, err := l.Lock(ctx, "87654321")
		require.NoError(t, err)
		other()
	})

	unlock()
	again, err := l.Lock(ctx, "12345678")
	require.NoError(t, err)
	again()
}

func TestRedisLockExpires(t *testing.T) {
	client := newRedisClient(t)
	l := NewRedis(client, WithTTL(100*time.Millisecond), WithRetryInterval(10*time.Millisecond))
	ctx := context.Background()

	stale, err := l.Lock(ctx, "12345678")
	require.NoError(t, err)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fresh, err := l.Lock(wctx, "12345678")
	require.NoError(t, err, "abandoned lock must expire")
	defer fresh()

	// The expired holder's release must not drop the new holder's key.
	stale()
	val, err := client.Get(ctx, redisKeyPrefix+"12345678").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val)
}
