package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/archive"
	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/filex"
	"github.com/dmitrijs2005/dirlist/internal/logging"
	"github.com/dmitrijs2005/dirlist/internal/server/config"
	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
	"github.com/dmitrijs2005/dirlist/internal/server/metrics"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
	"github.com/dmitrijs2005/dirlist/internal/workerpool"
	"github.com/google/uuid"
)

// TaskPool runs extraction tasks in the background.
type TaskPool interface {
	Submit(task workerpool.Task) error
	Stats() workerpool.Stats
}

// ExtractionService accepts archive extraction requests, runs them on a
// TaskPool and answers progress queries from the shared job store.
type ExtractionService struct {
	root            string
	ttl             time.Duration
	destLockTimeout time.Duration

	locks   locks.KeyedLock
	jobs    jobs.Repository
	pool    TaskPool
	metrics *metrics.Metrics
	logger  logging.Logger

	now func() time.Time

	mu        sync.Mutex
	highWater map[string]mark
}

// mark is the last progress reported for a live job.
type mark struct {
	size int64
	seen time.Time
}

func NewExtractionService(cfg *config.Config, lk locks.KeyedLock, repo jobs.Repository, pool TaskPool, m *metrics.Metrics, logger logging.Logger) *ExtractionService {
	return &ExtractionService{
		root:            cfg.RootDirectory,
		ttl:             cfg.ExtractionResultTTL,
		destLockTimeout: cfg.DestinationLockTimeout,
		locks:           lk,
		jobs:            repo,
		pool:            pool,
		metrics:         m,
		logger:          logger.With("module", "extraction"),
		now:             time.Now,
		highWater:       make(map[string]mark),
	}
}

// Extract validates the archive at relPath, reserves a destination
// directory next to it and queues the extraction. It returns as soon as
// the job is queued; ExtractedSize is always zero.
func (s *ExtractionService) Extract(ctx context.Context, relPath string) (*models.ExtractionProgress, error) {
	reader, err := archive.ForPath(relPath)
	if err != nil {
		return nil, err
	}

	src := resolve(s.root, relPath)
	fi, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrSourceNotFound, relPath)
		}
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrSourceNotFound, relPath)
	}

	info, err := reader.Inspect(src)
	if err != nil {
		return nil, err
	}
	if info.TotalSize <= 0 {
		return nil, fmt.Errorf("%w: %s has no content", common.ErrCorruptArchive, relPath)
	}

	dest, err := s.allocateDestination(ctx, src)
	if err != nil {
		return nil, err
	}

	job := &models.ExtractionJob{
		ID:              uuid.NewString(),
		SourcePath:      src,
		DestinationPath: dest,
		TotalSize:       info.TotalSize,
		CreatedAt:       s.now(),
		State:           models.JobRunning,
	}

	if err := s.jobs.CreateLive(ctx, job); err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	task := *job
	if err := s.pool.Submit(func() { s.run(&task) }); err != nil {
		s.finish(ctx, job, err)
		return nil, err
	}

	s.metrics.ExtractionsSubmitted.Inc()
	s.observePool()
	s.logger.Info(ctx, "extraction queued",
		"id", job.ID, "source", src, "destination", dest, "total_size", job.TotalSize, "entries", info.Entries)

	return &models.ExtractionProgress{
		ID:              job.ID,
		TotalSize:       job.TotalSize,
		ExtractedSize:   0,
		DestinationPath: job.DestinationPath,
		State:           models.JobRunning,
	}, nil
}

// Progress reports the state of job id. Live jobs are measured by the size
// of their destination on disk, which approximates the decoded bytes; the
// value never decreases between polls and never exceeds TotalSize.
func (s *ExtractionService) Progress(ctx context.Context, id string) (*models.ExtractionProgress, error) {
	job, err := s.jobs.GetLive(ctx, id)
	if err == nil {
		return &models.ExtractionProgress{
			ID:              job.ID,
			TotalSize:       job.TotalSize,
			ExtractedSize:   s.measure(job),
			DestinationPath: job.DestinationPath,
			State:           models.JobRunning,
		}, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	// Not live here any more, possibly finished by another node.
	s.forget(id)

	job, err = s.jobs.GetFinished(ctx, id)
	if err != nil {
		return nil, err
	}

	extracted := job.TotalSize
	if job.State == models.JobFailed {
		extracted = s.measure(job)
	}

	return &models.ExtractionProgress{
		ID:              job.ID,
		TotalSize:       job.TotalSize,
		ExtractedSize:   extracted,
		DestinationPath: job.DestinationPath,
		State:           job.State,
		Error:           job.Error,
	}, nil
}

// allocateDestination picks the first free name among "foo", "foo (1)",
// "foo (2)", ... for archive src and creates it. The whole search runs
// under the lock on the base name so concurrent requests, on any node,
// never settle on the same directory.
func (s *ExtractionService) allocateDestination(ctx context.Context, src string) (string, error) {
	base := filex.TrimExt(src)
	key, err := locks.PathKey(base)
	if err != nil {
		return "", err
	}

	var dest string
	err = locks.WithLock(ctx, s.locks, key, s.destLockTimeout, func(ctx context.Context) error {
		for i := 0; ; i++ {
			candidate := base
			if i > 0 {
				candidate = fmt.Sprintf("%s (%d)", base, i)
			}

			exists, err := filex.Exists(candidate)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			if err := os.Mkdir(candidate, 0o755); err != nil {
				if errors.Is(err, fs.ErrExist) {
					continue
				}
				return err
			}
			dest = candidate
			return nil
		}
	})
	if errors.Is(err, common.ErrLockTimeout) {
		s.metrics.LockTimeouts.WithLabelValues(metrics.ScopeDestination).Inc()
	}
	return dest, err
}

func (s *ExtractionService) run(job *models.ExtractionJob) {
	ctx := context.Background()
	s.observePool()

	start := time.Now()
	err := s.extract(ctx, job)
	s.finish(ctx, job, err)

	if err != nil {
		s.logger.Error(ctx, "extraction failed", "id", job.ID, "source", job.SourcePath, "error", err)
	} else {
		s.logger.Info(ctx, "extraction finished", "id", job.ID, "destination", job.DestinationPath, "took", time.Since(start))
	}
	s.observePool()
}

func (s *ExtractionService) extract(ctx context.Context, job *models.ExtractionJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	reader, err := archive.ForPath(job.SourcePath)
	if err != nil {
		return err
	}
	return reader.Extract(ctx, job.SourcePath, job.DestinationPath)
}

// finish moves job to the finished bucket with the outcome of err.
func (s *ExtractionService) finish(ctx context.Context, job *models.ExtractionJob, err error) {
	job.FinishedAt = s.now()
	job.State = models.JobSucceeded
	job.Error = ""
	if err != nil {
		job.State = models.JobFailed
		job.Error = err.Error()
	}

	if ferr := s.jobs.Finish(context.WithoutCancel(ctx), job, s.ttl); ferr != nil {
		s.logger.Error(ctx, "failed to record finished job", "id", job.ID, "error", ferr)
	}

	s.forget(job.ID)
	s.metrics.ExtractionsFinished.WithLabelValues(string(job.State)).Inc()
}

// measure returns the on-disk size of the job's destination clamped to
// TotalSize and never below the previous measurement of a live job.
func (s *ExtractionService) measure(job *models.ExtractionJob) int64 {
	size, err := filex.DirSize(job.DestinationPath)
	if err != nil {
		size = 0
	}
	size = min(size, job.TotalSize)

	if job.State.Terminal() {
		return size
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.highWater[job.ID]; prev.size > size {
		size = prev.size
	}
	s.highWater[job.ID] = mark{size: size, seen: s.now()}
	return size
}

func (s *ExtractionService) forget(id string) {
	s.mu.Lock()
	delete(s.highWater, id)
	s.mu.Unlock()
}

// PurgeExpired drops progress marks not refreshed within the result TTL.
// A mark outlives its job when a poll races the job's completion or when
// the job is finished by another node and never polled here again.
func (s *ExtractionService) PurgeExpired(_ context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.highWater {
		if m.seen.Before(cutoff) {
			delete(s.highWater, id)
			n++
		}
	}
	return n, nil
}

func (s *ExtractionService) observePool() {
	st := s.pool.Stats()
	s.metrics.ObservePool(st.Queued, st.Running)
}
