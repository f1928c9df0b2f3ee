package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testOptions() Options {
	return Options{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond, DriftFactor: 0.01}
}

func TestRedisKeyLocker_LockAndRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	l, err := NewRedisKeyLocker(client, testOptions(), zap.NewNop())
	require.NoError(t, err)

	unlock, err := l.LockKeys(context.Background(), "stock:b", "stock:a")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"stock:a"))
	assert.True(t, mr.Exists(keyPrefix+"stock:b"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"stock:a"))
	assert.False(t, mr.Exists(keyPrefix+"stock:b"))
}

func TestRedisKeyLocker_Exclusive(t *testing.T) {
	_, client := setupTestRedis(t)
	l, err := NewRedisKeyLocker(client, testOptions(), nil)
	require.NoError(t, err)

	var inside, violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.LockKeys(context.Background(), "document:1")
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, violations.Load())
}

func TestRedisKeyLocker_Contention(t *testing.T) {
	mr, client := setupTestRedis(t)
	opts := testOptions()
	opts.Tries = 2
	l, err := NewRedisKeyLocker(client, opts, nil)
	require.NoError(t, err)

	unlock, err := l.LockKeys(context.Background(), "stock:b")
	require.NoError(t, err)
	defer unlock()

	_, err = l.LockKeys(context.Background(), "stock:a", "stock:b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLockTimeout))
	assert.False(t, mr.Exists(keyPrefix+"stock:a"), "partially acquired keys are released")
}

func TestNewRedisKeyLocker_Validation(t *testing.T) {
	_, client := setupTestRedis(t)

	_, err := NewRedisKeyLocker(nil, testOptions(), nil)
	assert.Error(t, err)

	bad := testOptions()
	bad.DriftFactor = 1
	_, err = NewRedisKeyLocker(client, bad, nil)
	assert.ErrorContains(t, err, "drift factor")

	bad = testOptions()
	bad.Tries = 0
	_, err = NewRedisKeyLocker(client, bad, nil)
	assert.ErrorContains(t, err, "tries")
}

func TestNew(t *testing.T) {
	_, client := setupTestRedis(t)
	cfg := config.LockConfig{Backend: "local", Expiry: time.Minute, Tries: 4, RetryDelay: 10 * time.Millisecond, DriftFactor: 0.01}

	local, err := New(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalKeyLocker{}, local)
	assert.Equal(t, 40*time.Millisecond, local.(*LocalKeyLocker).wait)

	cfg.Backend = "redis"
	r, err := New(cfg, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisKeyLocker{}, r)

	cfg.Backend = "etcd"
	_, err = New(cfg, client, zap.NewNop())
	assert.Error(t, err)
}
