package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix namespaces lock keys in Redis
const keyPrefix = "erp:lock:"

// unlockTimeout bounds the release of one key after the caller's context
// may already be done
const unlockTimeout = 2 * time.Second

// Options tunes the RedLock mutexes
type Options struct {
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
}

// OptionsFromConfig converts the lock configuration
func OptionsFromConfig(cfg config.LockConfig) Options {
	return Options{
		Expiry:      cfg.Expiry,
		Tries:       cfg.Tries,
		RetryDelay:  cfg.RetryDelay,
		DriftFactor: cfg.DriftFactor,
	}
}

func (o Options) validate() error {
	switch {
	case o.Expiry <= 0:
		return errors.New("lock expiry must be greater than 0")
	case o.Tries < 1:
		return errors.New("lock tries must be at least 1")
	case o.RetryDelay < 0:
		return errors.New("lock retry delay cannot be negative")
	case o.DriftFactor < 0 || o.DriftFactor >= 1:
		return errors.New("lock drift factor must be in [0, 1)")
	}
	return nil
}

// RedisKeyLocker locks keys across processes with one redsync mutex per key
type RedisKeyLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *zap.Logger
}

// NewRedisKeyLocker creates a RedisKeyLocker on client
func NewRedisKeyLocker(client redis.UniversalClient, opts Options, logger *zap.Logger) (*RedisKeyLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisKeyLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger.Named("redis_locker"),
	}, nil
}

// LockKeys acquires keys in sorted order. Contention that outlasts the
// configured tries fails with LOCK_TIMEOUT.
func (l *RedisKeyLocker) LockKeys(ctx context.Context, keys ...string) (func(), error) {
	keys = shared.SortKeys(keys)
	held := make([]*redsync.Mutex, 0, len(keys))
	for _, key := range keys {
		m := l.rs.NewMutex(keyPrefix+key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(l.opts.Tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
			redsync.WithDriftFactor(l.opts.DriftFactor),
		)
		if err := m.LockContext(ctx); err != nil {
			l.release(held)
			return nil, l.lockError(ctx, key, err)
		}
		held = append(held, m)
	}
	l.logger.Debug("Keys locked", zap.Strings("keys", keys))

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *RedisKeyLocker) lockError(ctx context.Context, key string, err error) error {
	msg := err.Error()
	switch {
	case ctx.Err() != nil:
		return waitError(key, ctx.Err())
	case errors.Is(err, redsync.ErrFailed),
		strings.Contains(msg, "lock already taken"),
		strings.Contains(msg, "failed to acquire lock"):
		return waitError(key, nil)
	default:
		return fmt.Errorf("lock %s: %w", key, err)
	}
}

// release unlocks in reverse order. An expired mutex is logged: the
// transaction it guarded may have overrun the lock expiry.
func (l *RedisKeyLocker) release(held []*redsync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		ok, err := held[i].UnlockContext(ctx)
		cancel()
		if err != nil || !ok {
			l.logger.Warn("Failed to release lock",
				zap.String("key", held[i].Name()),
				zap.Bool("held", ok),
				zap.Error(err),
			)
		}
	}
}

// New builds the locker selected by cfg. client may be nil for the local
// backend.
func New(cfg config.LockConfig, client redis.UniversalClient, logger *zap.Logger) (shared.KeyLocker, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalKeyLocker(time.Duration(cfg.Tries) * cfg.RetryDelay), nil
	case "redis":
		return NewRedisKeyLocker(client, OptionsFromConfig(cfg), logger)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

var _ shared.KeyLocker = (*RedisKeyLocker)(nil)
