package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "StockLevel", uuid.New())}
}

type recordingHandler struct {
	types []string
	mu    sync.Mutex
	seen  []shared.DomainEvent
	err   error
	panic bool
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	if h.panic {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.seen...)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}
