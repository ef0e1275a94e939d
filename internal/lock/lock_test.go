package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisFromClient(rdb, zap.NewNop()), mr
}

func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, _ = l.Acquire(ctx, "user:2", time.Minute)
	require.True(t, ok)

	release()
	release()
	_, ok, _ = l.Acquire(ctx, "user:1", time.Minute)
	require.True(t, ok)
}

func TestLocal_ConcurrentSingleWinner(t *testing.T) {
	l := NewLocal()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.Acquire(context.Background(), "user:9", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners.Load())
}

func TestRedis_AcquireRelease(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := r.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(keyPrefix+"user:1"))

	_, ok, err = r.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.False(t, mr.Exists(keyPrefix+"user:1"))

	_, ok, err = r.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedis_ExpiredLockNotStolenOnRelease(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	staleRelease, ok, err := r.Acquire(ctx, "user:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = r.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder's token no longer matches.
	staleRelease()
	require.True(t, mr.Exists(keyPrefix+"user:1"))
}

func TestRedis_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	r := NewRedisFromClient(rdb, zap.NewNop())
	mr.Close()

	_, ok, err := r.Acquire(context.Background(), "user:1", time.Minute)
	require.Error(t, err)
	require.False(t, ok)
}
