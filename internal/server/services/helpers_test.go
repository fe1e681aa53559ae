package services

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/server/config"
	"github.com/dmitrijs2005/dirlist/internal/workerpool"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RootDirectory = t.TempDir()
	cfg.CacheDirectory = t.TempDir()
	cfg.ExtractionResultTTL = time.Hour
	cfg.DestinationLockTimeout = 2 * time.Second
	cfg.ZipLockTimeout = 5 * time.Second
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func makeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// zipEntries lists the entry names and total uncompressed size of a zip.
func zipEntries(t *testing.T, path string) ([]string, uint64) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	var total uint64
	for _, f := range zr.File {
		names = append(names, f.Name)
		total += f.UncompressedSize64
	}
	sort.Strings(names)
	return names, total
}

// heldPool queues tasks without running them until Release is called.
type heldPool struct {
	mu     sync.Mutex
	tasks  []workerpool.Task
	closed bool
}

func (p *heldPool) Submit(task workerpool.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return workerpool.ErrPoolClosed
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *heldPool) Stats() workerpool.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return workerpool.Stats{Workers: 1, Queued: len(p.tasks)}
}

// Release runs every queued task on the calling goroutine.
func (p *heldPool) Release() {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}
