package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of side effects that already happened, such
// as a notification sent for one event to one address
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It reports false when the key was
	// already recorded.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls deduplication of side effects
type IdempotencyConfig struct {
	TTL     time.Duration // how long a key suppresses repeats
	Enabled bool
}

// DefaultIdempotencyConfig dedupes for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
