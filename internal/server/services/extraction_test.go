package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/logging"
	"github.com/dmitrijs2005/dirlist/internal/server/config"
	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
	"github.com/dmitrijs2005/dirlist/internal/server/metrics"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
	"github.com/dmitrijs2005/dirlist/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractionFixture struct {
	cfg   *config.Config
	svc   *ExtractionService
	locks *locks.Memory
	jobs  *jobs.MemoryRepository
	m     *metrics.Metrics
}

func newExtractionFixture(t *testing.T, pool TaskPool, mutate ...func(*config.Config)) *extractionFixture {
	t.Helper()
	cfg := newTestConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}

	if pool == nil {
		p := workerpool.New(4)
		t.Cleanup(p.Close)
		pool = p
	}

	f := &extractionFixture{
		cfg:   cfg,
		locks: locks.NewMemory(),
		jobs:  jobs.NewMemoryRepository(),
		m:     metrics.New(),
	}
	f.svc = NewExtractionService(cfg, f.locks, f.jobs, pool, f.m, logging.Nop{})
	return f
}

func (f *extractionFixture) waitFinished(t *testing.T, id string) *models.ExtractionProgress {
	t.Helper()
	var p *models.ExtractionProgress
	require.Eventually(t, func() bool {
		var err error
		p, err = f.svc.Progress(context.Background(), id)
		return err == nil && p.State.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return p
}

func TestExtract_ReturnsTotalSizeImmediately(t *testing.T) {
	pool := &heldPool{}
	f := newExtractionFixture(t, pool)
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "docs", "foo.zip"), map[string]string{
		"a.txt":     "0123456789",
		"sub/b.txt": "01234567890123456789",
	})

	p, err := f.svc.Extract(context.Background(), "docs/foo.zip")
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, int64(30), p.TotalSize)
	assert.Equal(t, int64(0), p.ExtractedSize)
	assert.Equal(t, models.JobRunning, p.State)
	assert.Equal(t, filepath.Join(f.cfg.RootDirectory, "docs", "foo"), p.DestinationPath)

	fi, err := os.Stat(p.DestinationPath)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ExtractionsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.PoolQueueDepth))

	live, err := f.jobs.GetLive(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.cfg.RootDirectory, "docs", "foo.zip"), live.SourcePath)
}

func TestExtract_RunsToSuccess(t *testing.T) {
	f := newExtractionFixture(t, nil)
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{
		"a.txt":     "hello",
		"dir/b.txt": "world",
	})

	p, err := f.svc.Extract(context.Background(), "foo.zip")
	require.NoError(t, err)

	done := f.waitFinished(t, p.ID)
	assert.Equal(t, models.JobSucceeded, done.State)
	assert.Equal(t, done.TotalSize, done.ExtractedSize)
	assert.Empty(t, done.Error)

	b, err := os.ReadFile(filepath.Join(p.DestinationPath, "dir", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(b))

	_, err = f.jobs.GetLive(context.Background(), p.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ExtractionsFinished.WithLabelValues("succeeded")))
}

func TestExtract_ValidationFaults(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{})
	root := f.cfg.RootDirectory

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.zip"), []byte("garbage"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "folder.zip"), 0o755))
	makeZip(t, filepath.Join(root, "empty.zip"), map[string]string{})

	tests := []struct {
		path string
		want error
	}{
		{"notes.txt", common.ErrUnsupportedType},
		{"missing.zip", common.ErrSourceNotFound},
		{"folder.zip", common.ErrSourceNotFound},
		{"bad.zip", common.ErrCorruptArchive},
		{"empty.zip", common.ErrCorruptArchive},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.svc.Extract(context.Background(), tt.path)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// Nothing was queued and no destination was created.
	assert.Equal(t, 0, (f.svc.pool.(*heldPool)).Stats().Queued)
	_, err := os.Stat(filepath.Join(root, "bad"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_UnwritableEntryFailsJob(t *testing.T) {
	f := newExtractionFixture(t, nil)
	// "a" cannot be both a file and the parent of a/b.txt.
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "clash.zip"), map[string]string{
		"a":       "file",
		"a/b.txt": "nested",
	})

	p, err := f.svc.Extract(context.Background(), "clash.zip")
	require.NoError(t, err)

	done := f.waitFinished(t, p.ID)
	assert.Equal(t, models.JobFailed, done.State)
	assert.NotEmpty(t, done.Error)
	assert.LessOrEqual(t, done.ExtractedSize, done.TotalSize)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ExtractionsFinished.WithLabelValues("failed")))
}

func TestExtract_ConcurrentSubmissionsGetDistinctDestinations(t *testing.T) {
	const n = 12
	f := newExtractionFixture(t, &heldPool{})
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{"a.txt": "a"})

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.svc.Extract(context.Background(), "foo.zip")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			got = append(got, filepath.Base(p.DestinationPath))
			mu.Unlock()
		}()
	}
	wg.Wait()

	want := []string{"foo"}
	for i := 1; i < n; i++ {
		want = append(want, fmt.Sprintf("foo (%d)", i))
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestExtract_SkipsExistingDestinations(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{})
	root := f.cfg.RootDirectory
	makeZip(t, filepath.Join(root, "foo.zip"), map[string]string{"a.txt": "a"})
	require.NoError(t, os.Mkdir(filepath.Join(root, "foo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo (1)"), []byte("file, not dir"), 0o644))

	p, err := f.svc.Extract(context.Background(), "foo.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "foo (2)"), p.DestinationPath)
}

func TestExtract_DestinationLockTimeout(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{}, func(c *config.Config) {
		c.DestinationLockTimeout = 20 * time.Millisecond
	})
	src := filepath.Join(f.cfg.RootDirectory, "foo.zip")
	makeZip(t, src, map[string]string{"a.txt": "a"})

	key, err := locks.PathKey(filepath.Join(f.cfg.RootDirectory, "foo"))
	require.NoError(t, err)
	held, err := f.locks.Acquire(context.Background(), key, time.Second)
	require.NoError(t, err)
	defer held.Release(context.Background())

	_, err = f.svc.Extract(context.Background(), "foo.zip")
	require.ErrorIs(t, err, common.ErrLockTimeout)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.LockTimeouts.WithLabelValues(metrics.ScopeDestination)))

	_, statErr := os.Stat(filepath.Join(f.cfg.RootDirectory, "foo"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract_PoolClosedRecordsFailure(t *testing.T) {
	pool := &heldPool{closed: true}
	f := newExtractionFixture(t, pool)
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{"a.txt": "a"})

	_, err := f.svc.Extract(context.Background(), "foo.zip")
	require.ErrorIs(t, err, workerpool.ErrPoolClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.ExtractionsFinished.WithLabelValues("failed")))
}

func TestProgress_MonotonicAndClamped(t *testing.T) {
	pool := &heldPool{}
	f := newExtractionFixture(t, pool)
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{
		"a.txt": "0123456789",
		"b.txt": "0123456789",
	})

	p, err := f.svc.Extract(context.Background(), "foo.zip")
	require.NoError(t, err)
	ctx := context.Background()

	got, err := f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ExtractedSize)

	// Simulate a partially written destination.
	writeFile(t, filepath.Join(p.DestinationPath, "a.txt"), "0123456789")
	got, err = f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ExtractedSize)

	// Shrinking the directory does not move progress backwards.
	require.NoError(t, os.Remove(filepath.Join(p.DestinationPath, "a.txt")))
	got, err = f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ExtractedSize)

	// More bytes on disk than the archive declares are clamped.
	writeFile(t, filepath.Join(p.DestinationPath, "junk.bin"), string(make([]byte, 100)))
	got, err = f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.ExtractedSize)
	assert.Equal(t, models.JobRunning, got.State)
}

func TestProgress_UnknownID(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{})
	_, err := f.svc.Progress(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProgress_ExpiresAfterTTL(t *testing.T) {
	pool := &heldPool{}
	f := newExtractionFixture(t, pool, func(c *config.Config) {
		c.ExtractionResultTTL = 50 * time.Millisecond
	})
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{"a.txt": "a"})

	p, err := f.svc.Extract(context.Background(), "foo.zip")
	require.NoError(t, err)
	pool.Release()

	got, err := f.svc.Progress(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, got.State)

	require.Eventually(t, func() bool {
		_, err := f.svc.Progress(context.Background(), p.ID)
		return errors.Is(err, common.ErrorNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func (f *extractionFixture) marks() int {
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	return len(f.svc.highWater)
}

func TestProgress_ForgetsJobFinishedElsewhere(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{})
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{"a.txt": "a"})
	ctx := context.Background()

	p, err := f.svc.Extract(ctx, "foo.zip")
	require.NoError(t, err)
	_, err = f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.marks())

	// Another node runs the task and records the outcome in the shared store.
	job, err := f.jobs.GetLive(ctx, p.ID)
	require.NoError(t, err)
	job.State = models.JobSucceeded
	job.FinishedAt = time.Now()
	require.NoError(t, f.jobs.Finish(ctx, job, time.Minute))

	got, err := f.svc.Progress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, got.State)
	assert.Zero(t, f.marks())
}

func TestExtractionService_PurgeExpiredDropsStaleMarks(t *testing.T) {
	f := newExtractionFixture(t, &heldPool{}, func(c *config.Config) {
		c.ExtractionResultTTL = time.Minute
	})
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	makeZip(t, filepath.Join(f.cfg.RootDirectory, "foo.zip"), map[string]string{"a.txt": "a"})
	makeZip(t, filepath.Join(f.cfg.RootDirectory, "bar.zip"), map[string]string{"b.txt": "b"})
	ctx := context.Background()

	stale, err := f.svc.Extract(ctx, "foo.zip")
	require.NoError(t, err)
	fresh, err := f.svc.Extract(ctx, "bar.zip")
	require.NoError(t, err)

	_, err = f.svc.Progress(ctx, stale.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = f.svc.Progress(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.marks())

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.marks())

	// A purged mark only resets the floor; the job is still answered.
	got, err := f.svc.Progress(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, got.State)
}
