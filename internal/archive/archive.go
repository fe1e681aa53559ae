// Package archive reads archive metadata and extracts archives into a
// destination directory. Two container formats are supported: zip and rar.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/dirlist/internal/common"
	"github.com/dmitrijs2005/dirlist/internal/filex"
)

// Info describes an archive's contents as recorded in its headers.
type Info struct {
	Entries   int
	TotalSize int64
}

// Reader is implemented by every supported container format.
type Reader interface {
	// Inspect parses the archive headers without extracting data.
	// Unparseable archives yield common.ErrCorruptArchive.
	Inspect(path string) (Info, error)

	// Extract streams every entry of the archive at path into dest, which
	// must already exist.
	Extract(ctx context.Context, path, dest string) error
}

var readers = map[string]Reader{
	".zip": zipReader{},
	".rar": rarReader{},
}

// Supported reports whether path has a recognised archive extension.
func Supported(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ForPath picks the Reader for path by its extension.
func ForPath(path string) (Reader, error) {
	r, ok := readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedType, filepath.Base(path))
	}
	return r, nil
}

// entryPath maps an archive entry name to a path below dest, rejecting
// names that would escape it.
func entryPath(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !filex.Within(filepath.Clean(dest), target) {
		return "", fmt.Errorf("%w: entry %q escapes destination", common.ErrCorruptArchive, name)
	}
	return target, nil
}

// writeEntry copies r into a new file at target, creating parents.
func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := filex.EnsureParent(target); err != nil {
		return err
	}
	if mode.Perm() == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}

func corrupt(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrCorruptArchive, filepath.Base(path), err)
}
