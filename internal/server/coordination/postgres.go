package coordination

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
	"github.com/dmitrijs2005/dirlist/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresBackend shares locks and jobs between all nodes connected to
// the same database.
type PostgresBackend struct {
	db    *sql.DB
	locks *locks.Postgres
	jobs  *jobs.PostgresRepository
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres backend requires a database DSN")
	}

	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	return newPostgresBackend(db), nil
}

func newPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{
		db:    db,
		locks: locks.NewPostgres(db),
		jobs:  jobs.NewPostgresRepository(db),
	}
}

func (b *PostgresBackend) Conn() *sql.DB {
	return b.db
}

// RunMigrations applies the embedded goose migrations.
func (b *PostgresBackend) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, b.db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Locks() locks.KeyedLock {
	return b.locks
}

func (b *PostgresBackend) Jobs() jobs.Repository {
	return b.jobs
}

func (b *PostgresBackend) Purger() jobs.Purger {
	return b.jobs
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
