package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLock(client), mr
}

func TestRedisLock_AcquireSucceedsWhenFree(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := l.Acquire(ctx, "hybrid:BTC-USDT")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestRedisLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()
	name := "hybrid:ETH-USDT"

	acquired, err := l.Acquire(ctx, name)
	require.NoError(t, err)
	require.True(t, acquired)

	acquiredAgain, err := l.Acquire(ctx, name)
	require.NoError(t, err)
	require.False(t, acquiredAgain)
}

func TestRedisLock_ReleaseThenAcquireSucceeds(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()
	name := "hybrid:SOL-USDT"

	_, err := l.Acquire(ctx, name)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, name))

	acquired, err := l.Acquire(ctx, name)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestRedisLock_IsLockedReflectsState(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()
	name := "hybrid:DOGE-USDT"

	locked, err := l.IsLocked(ctx, name)
	require.NoError(t, err)
	require.False(t, locked)

	_, err = l.Acquire(ctx, name)
	require.NoError(t, err)

	locked, err = l.IsLocked(ctx, name)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestRedisLock_SelfExpiresAfterTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLockWithTTL(client, time.Second)
	ctx := context.Background()
	name := "hybrid:stale"

	acquired, err := l.Acquire(ctx, name)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	locked, err := l.IsLocked(ctx, name)
	require.NoError(t, err)
	require.False(t, locked)
}
