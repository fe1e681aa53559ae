package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/dbx"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
)

// PostgresRepository stores jobs in the extraction_jobs and
// finished_extraction_jobs tables.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateLive(ctx context.Context, job *models.ExtractionJob) error {
	query :=
		`INSERT INTO extraction_jobs (id, source_path, destination_path, total_size, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.SourcePath, job.DestinationPath, job.TotalSize, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetLive(ctx context.Context, id string) (*models.ExtractionJob, error) {
	query :=
		`SELECT id, source_path, destination_path, total_size, created_at
		 FROM extraction_jobs
		 WHERE id = $1
		`

	job := &models.ExtractionJob{State: models.JobRunning}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&job.ID, &job.SourcePath, &job.DestinationPath, &job.TotalSize, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return job, nil
}

func (r *PostgresRepository) GetFinished(ctx context.Context, id string) (*models.ExtractionJob, error) {
	query :=
		`SELECT id, source_path, destination_path, total_size, created_at, state, error, finished_at
		 FROM finished_extraction_jobs
		 WHERE id = $1 AND expires_at > now()
		`

	job := &models.ExtractionJob{}
	var state string
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&job.ID, &job.SourcePath, &job.DestinationPath, &job.TotalSize, &job.CreatedAt,
			&state, &job.Error, &job.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	job.State = models.JobState(state)
	return job, nil
}

func (r *PostgresRepository) Finish(ctx context.Context, job *models.ExtractionJob, ttl time.Duration) error {
	if !job.State.Terminal() {
		return fmt.Errorf("finish job %s: state %q is not terminal", job.ID, job.State)
	}

	finishedAt := job.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	// expires_at comes from the database clock, the same clock GetFinished
	// and PurgeExpired compare it with.
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM extraction_jobs WHERE id = $1`, job.ID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		query :=
			`INSERT INTO finished_extraction_jobs
			   (id, source_path, destination_path, total_size, created_at, state, error, finished_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now() + make_interval(secs => $9))
			 ON CONFLICT (id) DO UPDATE SET
			   state = EXCLUDED.state, error = EXCLUDED.error,
			   finished_at = EXCLUDED.finished_at, expires_at = EXCLUDED.expires_at
			`
		_, err := tx.ExecContext(ctx, query,
			job.ID, job.SourcePath, job.DestinationPath, job.TotalSize, job.CreatedAt,
			string(job.State), job.Error, finishedAt, ttl.Seconds())
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM finished_extraction_jobs WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
