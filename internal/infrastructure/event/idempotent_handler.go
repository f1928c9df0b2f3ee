package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long a handled event ID is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyConfig tunes an IdempotentHandler
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// IdempotencyStats counts what an IdempotentHandler did
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event ID.
// A store failure lets the event through; the wrapped handlers are
// re-entrant, so a duplicate run costs work, never correctness.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  IdempotencyConfig
	logger  *zap.Logger

	processed, duplicate, failed atomic.Int64
}

// NewIdempotentHandler wraps handler
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, config IdempotencyConfig, logger *zap.Logger) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = DefaultIdempotencyTTL
	}
	return &IdempotentHandler{handler: handler, store: store, config: config, logger: logger}
}

// EventTypes returns the types of the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle marks the event and runs the wrapped handler for first deliveries.
// The mark is kept when the handler fails so that it is retried only after
// the TTL.
func (h *IdempotentHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, e)
	}
	id := e.EventID().String()
	fields := []zap.Field{zap.String("event_id", id), zap.String("event_type", e.EventType())}

	isNew, err := h.store.MarkProcessed(ctx, id, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("Idempotency check failed, handling anyway", append(fields, zap.Error(err))...)
	case !isNew:
		h.duplicate.Add(1)
		h.logger.Debug("Duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, e); err != nil {
		h.failed.Add(1)
		return err
	}
	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
