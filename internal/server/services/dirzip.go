package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/filex"
	"github.com/dmitrijs2005/dirlist/internal/logging"
	"github.com/dmitrijs2005/dirlist/internal/server/config"
	"github.com/dmitrijs2005/dirlist/internal/server/locks"
	"github.com/dmitrijs2005/dirlist/internal/server/metrics"
	"github.com/dmitrijs2005/dirlist/internal/server/models"
	"github.com/dmitrijs2005/dirlist/internal/server/storage"
)

// ArtifactMirror copies built zips to shared object storage.
type ArtifactMirror interface {
	Upload(ctx context.Context, key, localPath string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// BuildFunc writes a zip of every regular file below src to target and
// returns the number of entries written.
type BuildFunc func(ctx context.Context, src, target string) (int, error)

// DirectoryZipService serves directories as zip archives cached under the
// cache directory. A cached zip is rebuilt once anything below its source
// directory is newer than the zip itself.
type DirectoryZipService struct {
	root           string
	cacheDir       string
	maxSize        int64
	zipLockTimeout time.Duration

	locks   locks.KeyedLock
	mirror  ArtifactMirror
	metrics *metrics.Metrics
	logger  logging.Logger
	build   BuildFunc

	// mirrored holds cache targets uploaded since their last build.
	mirrored sync.Map
}

// NewDirectoryZipService builds the service. mirror may be nil.
func NewDirectoryZipService(cfg *config.Config, lk locks.KeyedLock, mirror ArtifactMirror, m *metrics.Metrics, logger logging.Logger) *DirectoryZipService {
	return &DirectoryZipService{
		root:           cfg.RootDirectory,
		cacheDir:       cfg.CacheDirectory,
		maxSize:        cfg.MaxDirectoryDownloadSize,
		zipLockTimeout: cfg.ZipLockTimeout,
		locks:          lk,
		mirror:         mirror,
		metrics:        m,
		logger:         logger.With("module", "dirzip"),
		build:          BuildZip,
	}
}

// DownloadZipped returns an open handle on the cached zip of relDir,
// building it first when it is missing or stale. At most one build per
// cache file runs at a time; concurrent callers wait for it and reuse
// the result. The caller closes the file.
func (s *DirectoryZipService) DownloadZipped(ctx context.Context, relDir string) (*os.File, *models.DirectoryZip, error) {
	rel := cleanRel(relDir)
	src := resolve(s.root, rel)

	fi, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", common.ErrDirectoryNotFound, relDir)
		}
		return nil, nil, err
	}
	if !fi.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", common.ErrNotDirectory, relDir)
	}

	tree, err := filex.Tree(src)
	if err != nil {
		return nil, nil, err
	}
	if tree.Size > s.maxSize {
		return nil, nil, fmt.Errorf("%w: %s is %d bytes, limit %d", common.ErrSizeExceeded, relDir, tree.Size, s.maxSize)
	}

	target := filepath.Join(s.cacheDir, filepath.FromSlash(rel)+common.ZipExtension)
	key, err := locks.PathKey(target)
	if err != nil {
		return nil, nil, err
	}

	// Opened under the lock: after release another caller may replace a
	// stale target, and an open handle keeps the archive it was opened on.
	var f *os.File
	result := &models.DirectoryZip{SourceDir: src, ZipPath: target}
	err = locks.WithLock(ctx, s.locks, key, s.zipLockTimeout, func(ctx context.Context) error {
		if err := s.refresh(ctx, src, target, tree.LastModified, result); err != nil {
			return err
		}
		var err error
		f, err = openZip(target, result)
		return err
	})
	if err != nil {
		if f != nil {
			f.Close()
		}
		if errors.Is(err, common.ErrLockTimeout) {
			s.metrics.LockTimeouts.WithLabelValues(metrics.ScopeZip).Inc()
		}
		return nil, nil, err
	}

	if result.Built {
		s.upload(ctx, rel, target)
	}
	return f, result, nil
}

// PresignedURL makes sure the zip of relDir is current and mirrored, then
// returns a temporary download URL for it.
func (s *DirectoryZipService) PresignedURL(ctx context.Context, relDir string) (string, error) {
	if s.mirror == nil {
		return "", common.ErrMirrorDisabled
	}

	f, info, err := s.DownloadZipped(ctx, relDir)
	if err != nil {
		return "", err
	}
	f.Close()

	rel := cleanRel(relDir)
	if _, ok := s.mirrored.Load(info.ZipPath); !ok {
		if err := s.mirror.Upload(ctx, storage.ZipKey(rel), info.ZipPath); err != nil {
			return "", err
		}
		s.mirrored.Store(info.ZipPath, struct{}{})
	}

	return s.mirror.PresignGet(ctx, storage.ZipKey(rel))
}

// refresh runs with the cache lock held.
func (s *DirectoryZipService) refresh(ctx context.Context, src, target string, sourceModified time.Time, result *models.DirectoryZip) error {
	zfi, err := os.Stat(target)
	switch {
	case err == nil:
		if zfi.ModTime().Before(sourceModified) {
			s.logger.Debug(ctx, "cached zip is stale", "zip", target, "zip_mtime", zfi.ModTime(), "source_mtime", sourceModified)
			if err := os.Remove(target); err != nil {
				return fmt.Errorf("remove stale zip: %w", err)
			}
			zfi = nil
		}
	case errors.Is(err, fs.ErrNotExist):
		zfi = nil
	default:
		return err
	}

	if zfi == nil {
		if err := filex.EnsureParent(target); err != nil {
			return err
		}
		start := time.Now()
		n, err := s.build(ctx, src, target)
		if err != nil {
			return fmt.Errorf("build zip %s: %w", target, err)
		}
		s.mirrored.Delete(target)
		s.metrics.ZipBuilds.Inc()
		s.logger.Info(ctx, "zip built", "source", src, "zip", target, "entries", n, "took", time.Since(start))
		result.Built = true
	} else {
		if err := filex.Touch(target); err != nil {
			return err
		}
		s.metrics.ZipReuses.Inc()
	}
	return nil
}

// openZip opens target and records its size and mtime from the handle.
func openZip(target string, result *models.DirectoryZip) (*os.File, error) {
	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	result.ZipModTime = fi.ModTime()
	result.Size = fi.Size()
	return f, nil
}

func (s *DirectoryZipService) upload(ctx context.Context, rel, target string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Upload(ctx, storage.ZipKey(rel), target); err != nil {
		s.logger.Warn(ctx, "zip mirror upload failed", "zip", target, "error", err)
		return
	}
	s.mirrored.Store(target, struct{}{})
}

// BuildZip writes every regular file below src into a new zip at target.
// Entry names are slash separated paths relative to src; directories get
// no entries of their own. The archive is written to a temporary file and
// renamed into place, so target is never observed half written.
func BuildZip(ctx context.Context, src, target string) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := writeZip(ctx, tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmpName, target); err != nil {
		return 0, err
	}
	return n, nil
}

func writeZip(ctx context.Context, w io.Writer, src string) (int, error) {
	zw := zip.NewWriter(w)
	n := 0

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	h, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	h.Name = name
	h.Method = zip.Deflate

	w, err := zw.CreateHeader(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
