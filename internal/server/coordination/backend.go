// Package coordination bundles the cluster coordination primitives, the
// keyed lock and the job store, behind one injectable Backend.
package coordination

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
)

const (
	KindMemory   = "memory"
	KindPostgres = "postgres"
)

// Backend vends the coordination primitives used by the services.
type Backend interface {
	RunMigrations(ctx context.Context) error
	Locks() locks.KeyedLock
	Jobs() jobs.Repository
	// Purger reclaims expired finished jobs.
	Purger() jobs.Purger
	Close() error
}

// New builds the backend named by kind. dsn is used by the postgres
// backend only.
func New(kind, dsn string) (Backend, error) {
	switch kind {
	case KindMemory, "":
		return NewInMemoryBackend(), nil
	case KindPostgres:
		return NewPostgresBackend(dsn)
	default:
		return nil, fmt.Errorf("unknown coordination backend %q", kind)
	}
}
