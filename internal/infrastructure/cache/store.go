// Package cache holds the delivery idempotency stores.
package cache

import (
	"context"
	"fmt"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore connects to the configured Redis. When Redis is
// unreachable and cfg.Required is false it falls back to process memory.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory delivery idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}, cfg.KeyPrefix)
	if err == nil {
		logger.Info("Using Redis delivery idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	}
	if cfg.Required {
		return nil, fmt.Errorf("redis required for delivery idempotency: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory delivery idempotency store; "+
		"duplicates across worker instances are possible",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
