package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/posting/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	inner := &recordingHandler{types: []string{"posting.document_posted"}}
	h := NewIdempotentHandler(inner, store, IdempotencyConfig{Enabled: true}, nil)

	e := newTestEvent("posting.document_posted")
	require.NoError(t, h.Handle(context.Background(), e))
	require.NoError(t, h.Handle(context.Background(), e))
	require.NoError(t, h.Handle(context.Background(), newTestEvent("posting.document_posted")))

	assert.Len(t, inner.handled(), 2)
	assert.Equal(t, IdempotencyStats{Processed: 2, Duplicate: 1}, h.Stats())
	assert.Equal(t, inner.types, h.EventTypes())
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, store, IdempotencyConfig{}, nil)

	e := newTestEvent("x")
	require.NoError(t, h.Handle(context.Background(), e))
	require.NoError(t, h.Handle(context.Background(), e))
	assert.Len(t, inner.handled(), 2)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_StoreFailureLetsEventThrough(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, DefaultIdempotencyTTL).Return(false, errors.New("redis down"))
	inner := &recordingHandler{}
	h := NewIdempotentHandler(inner, store, IdempotencyConfig{Enabled: true}, nil)

	require.NoError(t, h.Handle(context.Background(), newTestEvent("x")))
	assert.Len(t, inner.handled(), 1)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_FailureKeepsMark(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	inner := &recordingHandler{err: errors.New("drift")}
	h := NewIdempotentHandler(inner, store, IdempotencyConfig{Enabled: true, TTL: time.Minute}, nil)

	e := newTestEvent("x")
	assert.Error(t, h.Handle(context.Background(), e))
	assert.NoError(t, h.Handle(context.Background(), e))
	assert.Equal(t, IdempotencyStats{Failed: 1, Duplicate: 1}, h.Stats())
}
