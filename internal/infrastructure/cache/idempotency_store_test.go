package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(d)
	}

	store := newInMemoryIdempotencyStore(time.Hour, now)
	defer store.Close()

	created, err := store.MarkProcessed(ctx, "evt-1:buyer@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.MarkProcessed(ctx, "evt-1:buyer@example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, created)

	done, err := store.IsProcessed(ctx, "evt-1:buyer@example.com")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = store.IsProcessed(ctx, "evt-1:partner@example.com")
	require.NoError(t, err)
	assert.False(t, done)

	advance(2 * time.Minute)
	done, err = store.IsProcessed(ctx, "evt-1:buyer@example.com")
	require.NoError(t, err)
	assert.False(t, done, "expired keys read as unprocessed")

	created, err = store.MarkProcessed(ctx, "evt-1:buyer@example.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, created, "expired keys may be recorded again")

	advance(2 * time.Minute)
	store.sweep()
	assert.Zero(t, store.Len())

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := store.MarkProcessed(context.Background(), "evt-2:buyer@example.com", time.Hour)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := NewRedisIdempotencyStore(ctx, &redis.Options{Addr: mr.Addr()}, "")
	require.NoError(t, err)
	defer store.Close()

	created, err := store.MarkProcessed(ctx, "evt-3:buyer@example.com", time.Hour)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"evt-3:buyer@example.com"))

	created, err = store.MarkProcessed(ctx, "evt-3:buyer@example.com", time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	done, err := store.IsProcessed(ctx, "evt-3:buyer@example.com")
	require.NoError(t, err)
	assert.True(t, done)

	mr.FastForward(2 * time.Hour)
	done, err = store.IsProcessed(ctx, "evt-3:buyer@example.com")
	require.NoError(t, err)
	assert.False(t, done)

	mr.SetError("READONLY replica")
	_, err = store.IsProcessed(ctx, "evt-3:buyer@example.com")
	assert.ErrorIs(t, err, shared.ErrStorage)
	mr.SetError("")
}

func TestRedisIdempotencyStore_SharedClientStaysOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	require.NoError(t, store.Close())
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled uses memory", func(t *testing.T) {
		store, err := NewIdempotencyStore(ctx, config.RedisConfig{}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("reachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := redisConfigFor(t, mr)
		store, err := NewIdempotencyStore(ctx, cfg, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back unless required", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

		store, err := NewIdempotencyStore(ctx, cfg, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)

		cfg.Required = true
		_, err = NewIdempotencyStore(ctx, cfg, nil)
		assert.Error(t, err)
	})
}

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}
}
