package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedSerializesSameKey(t *testing.T) {
	l := NewSharded()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "12345678")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestShardedHonoursContext(t *testing.T) {
	l := NewSharded()
	unlock, err := l.Lock(context.Background(), "12345678")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "12345678")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShardedUnlockIsIdempotent(t *testing.T) {
	l := NewSharded()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	again()
}

func TestHashKeyIsFNV1a(t *testing.T) {
	// Reference values for 32-bit FNV-1a.
	assert.Equal(t, uint32(2166136261), hashKey(""))
	assert.Equal(t, uint32(0xe40c292c), hashKey("a"))
}
