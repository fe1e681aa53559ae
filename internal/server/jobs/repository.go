// Package jobs stores extraction job metadata in two buckets: live jobs
// and finished records that expire after a TTL.
package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/server/models"
)

// Repository is the shared job store. Lookups of unknown or expired ids
// return common.ErrorNotFound.
type Repository interface {
	CreateLive(ctx context.Context, job *models.ExtractionJob) error
	GetLive(ctx context.Context, id string) (*models.ExtractionJob, error)
	GetFinished(ctx context.Context, id string) (*models.ExtractionJob, error)
	// Finish atomically removes job from the live bucket and stores it as
	// finished for ttl. job.State must be terminal.
	Finish(ctx context.Context, job *models.ExtractionJob, ttl time.Duration) error
}
