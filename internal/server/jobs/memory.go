package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
)

// MemoryRepository keeps both buckets in process memory. Expired finished
// records are hidden on read and reclaimed by PurgeExpired.
type MemoryRepository struct {
	mu       sync.RWMutex
	live     map[string]models.ExtractionJob
	finished map[string]finishedJob

	now func() time.Time
}

type finishedJob struct {
	job       models.ExtractionJob
	expiresAt time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		live:     make(map[string]models.ExtractionJob),
		finished: make(map[string]finishedJob),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreateLive(ctx context.Context, job *models.ExtractionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.live[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	r.live[job.ID] = *job
	return nil
}

func (r *MemoryRepository) GetLive(ctx context.Context, id string) (*models.ExtractionJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.live[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &job, nil
}

func (r *MemoryRepository) GetFinished(ctx context.Context, id string) (*models.ExtractionJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.finished[id]
	if !ok || !r.now().Before(f.expiresAt) {
		return nil, common.ErrorNotFound
	}
	job := f.job
	return &job, nil
}

func (r *MemoryRepository) Finish(ctx context.Context, job *models.ExtractionJob, ttl time.Duration) error {
	if !job.State.Terminal() {
		return fmt.Errorf("finish job %s: state %q is not terminal", job.ID, job.State)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.live, job.ID)
	r.finished[job.ID] = finishedJob{job: *job, expiresAt: r.now().Add(ttl)}
	return nil
}

// PurgeExpired drops finished records whose TTL has elapsed and returns
// how many were removed.
func (r *MemoryRepository) PurgeExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, f := range r.finished {
		if !now.Before(f.expiresAt) {
			delete(r.finished, id)
			n++
		}
	}
	return n, nil
}

// Purger is implemented by stores that can reclaim expired records.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Purgers runs several purgers in turn. Every purger runs even when an
// earlier one fails; the counts are summed and the errors joined.
type Purgers []Purger

func (ps Purgers) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	var errs []error
	for _, p := range ps {
		n, err := p.PurgeExpired(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// RunJanitor calls p.PurgeExpired every interval until ctx is done.
func RunJanitor(ctx context.Context, p Purger, interval time.Duration, onError func(error)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.PurgeExpired(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
