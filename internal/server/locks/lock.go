// Package locks provides keyed mutual exclusion with a bounded wait.
//
// Two implementations exist: Memory for a single process and Postgres,
// built on session advisory locks, for nodes sharing one database.
package locks

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// KeyedLock hands out exclusive locks per key.
type KeyedLock interface {
	// Acquire waits up to timeout for the lock on key. When the wait
	// expires the returned error wraps common.ErrLockTimeout.
	Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error)
}

// Lock is a held lock. Release may be called more than once.
type Lock interface {
	Release(ctx context.Context) error
}

// WithLock runs fn while holding the lock on key. The lock is released on
// every exit path, including a panic in fn.
func WithLock(ctx context.Context, l KeyedLock, key string, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	lk, err := l.Acquire(ctx, key, timeout)
	if err != nil {
		return err
	}

	defer func() {
		if rerr := lk.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = fmt.Errorf("release lock %s: %w", key, rerr)
		}
	}()

	return fn(ctx)
}

// PathKey turns a filesystem path into a lock key. Different spellings of
// the same location map to the same key.
func PathKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve lock key %s: %w", path, err)
	}
	return abs, nil
}
