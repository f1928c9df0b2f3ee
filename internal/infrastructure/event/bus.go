// Package event dispatches committed domain events to in-process handlers.
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsyncDispatch hands events to a pool of workers instead of running
// handlers on the publisher's goroutine. Publish blocks while the queue is
// full.
func WithAsyncDispatch(workers, queueSize int) BusOption {
	return func(b *InMemoryEventBus) {
		if workers <= 0 {
			workers = 1
		}
		if queueSize < 0 {
			queueSize = 0
		}
		b.workers = workers
		b.queue = make(chan shared.DomainEvent, queueSize)
	}
}

// InMemoryEventBus is a process-local EventBus. A failing or panicking
// handler is logged and never affects the publisher or other handlers.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	workers  int
	queue    chan shared.DomainEvent
	queueMu  sync.RWMutex // guards sends against closing the queue
	running  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
	failures atomic.Int64
}

// NewInMemoryEventBus creates a bus. Handlers run synchronously unless
// WithAsyncDispatch is given.
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{registry: NewHandlerRegistry(), logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish dispatches events in order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.queue == nil {
		for _, e := range events {
			b.dispatch(ctx, e)
		}
		return nil
	}

	b.queueMu.RLock()
	defer b.queueMu.RUnlock()
	for _, e := range events {
		if !b.running.Load() {
			return fmt.Errorf("event bus is not running, dropped %s", e.EventType())
		}
		select {
		case b.queue <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers handler for eventTypes, or for the types it declares
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the workers of an asynchronous bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.work(context.WithoutCancel(ctx))
	}
	b.logger.Info("Event bus started", zap.Int("workers", b.workers), zap.Bool("async", b.queue != nil))
	return nil
}

// Stop drains the queue and waits for the workers, or returns when ctx
// expires first
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	b.stopOnce.Do(func() {
		if b.queue != nil {
			b.queueMu.Lock()
			close(b.queue)
			b.queueMu.Unlock()
		}
	})
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns how many handler invocations failed or panicked
func (b *InMemoryEventBus) Failures() int64 {
	return b.failures.Load()
}

func (b *InMemoryEventBus) work(ctx context.Context) {
	defer b.wg.Done()
	for e := range b.queue {
		b.dispatch(ctx, e)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.registry.Handlers(e.EventType()) {
		if err := b.handle(ctx, h, e); err != nil {
			b.failures.Add(1)
			b.logger.Error("Event handler failed",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.String("aggregate_id", e.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) handle(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "event."+e.EventType())
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		telemetry.RecordError(span, err)
	}()
	return h.Handle(ctx, e)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
