// Package lock implements shared.KeyLocker in process and on Redis.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/posting/internal/domain/shared"
)

// LocalKeyLocker serializes keys inside one process. Each key is a
// one-slot channel, so waiting honours ctx.
type LocalKeyLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalKeyLocker creates a LocalKeyLocker. A positive wait bounds how
// long one LockKeys call waits before failing with LOCK_TIMEOUT.
func NewLocalKeyLocker(wait time.Duration) *LocalKeyLocker {
	return &LocalKeyLocker{slots: make(map[string]*slot), wait: wait}
}

// LockKeys acquires keys in sorted order
func (l *LocalKeyLocker) LockKeys(ctx context.Context, keys ...string) (func(), error) {
	keys = shared.SortKeys(keys)
	parent := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		s := l.acquire(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.drop(key)
			l.unlock(held)
			return nil, waitError(key, parent.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlock(held) }) }, nil
}

// acquire registers interest in key and returns its slot
func (l *LocalKeyLocker) acquire(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

// drop removes interest in key, deleting idle slots
func (l *LocalKeyLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		s.refs--
		if s.refs == 0 {
			delete(l.slots, key)
		}
	}
}

func (l *LocalKeyLocker) unlock(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[keys[i]]
		l.mu.Unlock()
		<-s.ch
		l.drop(keys[i])
	}
}

// waitError reports a failed lock wait. When the caller's own context
// ended, its error stays in the chain so a posting deadline is reported as
// such rather than as contention.
func waitError(key string, cause error) error {
	err := shared.Errorf(shared.ErrLockTimeout, "lock %s not acquired", key)
	if cause == nil {
		return err
	}
	return fmt.Errorf("%w: %w", err, cause)
}

var _ shared.KeyLocker = (*LocalKeyLocker)(nil)
