package cache

import (
	"github.com/erp/posting/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore picks the Redis store when a client is configured and
// the in-memory store otherwise
func NewIdempotencyStore(client redis.UniversalClient, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix)
	}
	logger.Warn("Redis disabled, using in-memory idempotency store; redelivered events are only detected within this instance")
	return NewInMemoryIdempotencyStore(DefaultCleanupInterval)
}
