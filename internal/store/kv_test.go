package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_GetSetDel(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "tenant:host:shop.example.com")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "tenant:host:shop.example.com", `{"id":"c1"}`, time.Minute))
	v, err := kv.Get(ctx, "tenant:host:shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"c1"}`, v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "tenant:host:shop.example.com")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Del(ctx, "a", "missing"))
	require.NoError(t, kv.Del(ctx))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_Incr_FixedWindow(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := kv.Incr(ctx, "ratelimit:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.True(t, ttl > 0 && ttl <= time.Minute)
	}

	mr.FastForward(time.Minute + time.Second)

	n, _, err := kv.Incr(ctx, "ratelimit:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryKV_GetSetExpiry(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(time.Second)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "forever", "v", 0))
	require.NoError(t, kv.Del(ctx, "forever"))
	_, err = kv.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKV_Incr_ConcurrentAndReset(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	kv.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = kv.Incr(ctx, "ip", time.Minute)
		}()
	}
	wg.Wait()

	n, ttl, err := kv.Incr(ctx, "ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
	assert.Equal(t, time.Minute, ttl)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()

	n, _, err = kv.Incr(ctx, "ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
