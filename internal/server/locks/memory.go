package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
)

// Memory is an in-process KeyedLock. Each key owns a one-slot semaphore
// that is dropped from the registry once nobody holds or waits for it.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error) {
	e := m.ref(key)

	select {
	case e.sem <- struct{}{}:
		return &memoryLock{m: m, key: key, e: e}, nil
	default:
	}

	if timeout <= 0 {
		m.unref(key, e)
		return nil, fmt.Errorf("%w: %s", common.ErrLockTimeout, key)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return &memoryLock{m: m, key: key, e: e}, nil
	case <-timer.C:
		m.unref(key, e)
		return nil, fmt.Errorf("%w: %s after %s", common.ErrLockTimeout, key, timeout)
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}
}

// keys reports how many keys are currently registered.
func (m *Memory) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) ref(key string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Memory) unref(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

type memoryLock struct {
	m    *Memory
	key  string
	e    *memoryEntry
	once sync.Once
}

func (l *memoryLock) Release(context.Context) error {
	l.once.Do(func() {
		<-l.e.sem
		l.m.unref(l.key, l.e)
	})
	return nil
}
