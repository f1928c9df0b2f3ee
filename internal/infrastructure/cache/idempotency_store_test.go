package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newInMemory(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewInMemoryIdempotencyStore(time.Hour)
	s.now = clock.Now
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisIdempotencyStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisIdempotencyStore(client, "")
}

// exercises the contract both stores share
func testStore(t *testing.T, store shared.IdempotencyStore, expire func(time.Duration)) {
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	done, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = store.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, done)

	expire(2 * time.Minute)
	done, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)
	isNew, err = store.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew, "expired keys can be marked again")
}

func TestInMemoryIdempotencyStore(t *testing.T) {
	s, clock := newInMemory(t)
	testStore(t, s, clock.Advance)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, s := setupRedis(t)
	testStore(t, s, mr.FastForward)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"evt-1"))
}

func TestInMemoryIdempotencyStore_RemoveExpired(t *testing.T) {
	s, clock := newInMemory(t)
	ctx := context.Background()
	_, _ = s.MarkProcessed(ctx, "short", time.Second)
	_, _ = s.MarkProcessed(ctx, "long", time.Hour)

	clock.Advance(time.Minute)
	s.removeExpired()
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryIdempotencyStore_ConcurrentMarkHasOneWinner(t *testing.T) {
	s, _ := newInMemory(t)
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.MarkProcessed(context.Background(), "evt", time.Minute); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	s := NewInMemoryIdempotencyStore(0)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	mr, s := setupRedis(t)
	mr.Close()
	_, err := s.MarkProcessed(context.Background(), "evt", time.Minute)
	assert.Error(t, err)
}

func TestNewIdempotencyStore(t *testing.T) {
	mem := NewIdempotencyStore(nil, nil)
	defer mem.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, mem)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &RedisIdempotencyStore{}, NewIdempotencyStore(client, nil))
}
