package coordination

import (
	"context"

	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
)

// InMemoryBackend serves a single node.
type InMemoryBackend struct {
	locks *locks.Memory
	jobs  *jobs.MemoryRepository
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		locks: locks.NewMemory(),
		jobs:  jobs.NewMemoryRepository(),
	}
}

func (b *InMemoryBackend) RunMigrations(ctx context.Context) error {
	return nil
}

func (b *InMemoryBackend) Locks() locks.KeyedLock {
	return b.locks
}

func (b *InMemoryBackend) Jobs() jobs.Repository {
	return b.jobs
}

func (b *InMemoryBackend) Purger() jobs.Purger {
	return b.jobs
}

func (b *InMemoryBackend) Close() error {
	return nil
}
