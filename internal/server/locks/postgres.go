package locks

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
)

const defaultPollInterval = 100 * time.Millisecond

// Postgres is a KeyedLock over session level advisory locks. Every held
// lock pins one pooled connection until it is released.
type Postgres struct {
	db   *sql.DB
	poll time.Duration
}

type PostgresOption func(*Postgres)

// WithPollInterval sets how often a contended lock is retried.
func WithPollInterval(d time.Duration) PostgresOption {
	return func(p *Postgres) { p.poll = d }
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, poll: defaultPollInterval}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LockID derives the advisory lock id from key: the first eight bytes of
// its SHA-256 digest.
func LockID(key string) int64 {
	sum := sha256.Sum256([]byte(key))

	var id int64
	for i := range 8 {
		id = (id << 8) | int64(sum[i])
	}
	return id
}

func (p *Postgres) Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	id := LockID(key)
	deadline := time.Now().Add(timeout)

	for {
		var ok bool
		if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&ok); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db error: %w", err)
		}
		if ok {
			return &postgresLock{conn: conn, id: id}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			conn.Close()
			return nil, fmt.Errorf("%w: %s after %s", common.ErrLockTimeout, key, timeout)
		}

		wait := min(p.poll, remaining)
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

type postgresLock struct {
	conn *sql.Conn
	id   int64

	once sync.Once
	err  error
}

func (l *postgresLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		if _, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, l.id); err != nil {
			// The session may still hold the lock; drop the connection
			// instead of handing it back to the pool.
			_ = l.conn.Raw(func(any) error { return driver.ErrBadConn })
			l.err = fmt.Errorf("db error: %w", err)
			return
		}
		l.err = l.conn.Close()
	})
	return l.err
}
