package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces delivery keys in a shared Redis
const DefaultKeyPrefix = "procurement:delivered:"

// RedisIdempotencyStore records acknowledged deliveries in Redis so every
// worker instance sees them
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
	owned     bool
}

// NewRedisIdempotencyStore opens a client and verifies the connection
func NewRedisIdempotencyStore(ctx context.Context, opts *redis.Options, keyPrefix string) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	store := NewRedisIdempotencyStoreWithClient(client, keyPrefix)
	store.owned = true
	return store, nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client. Close leaves
// the client open.
func NewRedisIdempotencyStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed records the key with SET NX. It reports false when the key
// was already recorded.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, s.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, shared.NewStorageError("mark delivery", err)
	}
	return created, nil
}

// IsProcessed reports whether the key is recorded and not expired
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, shared.NewStorageError("check delivery", err)
	}
	return n > 0, nil
}

// Close closes the client when the store created it
func (s *RedisIdempotencyStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
