// Package filex contains filesystem helpers shared by the extraction
// coordinator and the directory zip cache.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Exists reports whether path exists. Errors other than "not exist" are
// returned so that permission problems are not mistaken for free names.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// TreeInfo summarizes a directory tree.
type TreeInfo struct {
	// Size is the total size of all regular files.
	Size int64
	// Files counts regular files.
	Files int
	// LastModified is the newest mtime of the root and any descendant.
	LastModified time.Time
}

// Tree walks root and returns its TreeInfo. Entries that disappear during
// the walk are skipped; extraction targets are written to concurrently.
func Tree(root string) (TreeInfo, error) {
	var info TreeInfo

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if fi.ModTime().After(info.LastModified) {
			info.LastModified = fi.ModTime()
		}
		if fi.Mode().IsRegular() {
			info.Size += fi.Size()
			info.Files++
		}
		return nil
	})
	if err != nil {
		return TreeInfo{}, fmt.Errorf("walk %s: %w", root, err)
	}

	return info, nil
}

// DirSize returns the total size of regular files below root.
func DirSize(root string) (int64, error) {
	info, err := Tree(root)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Touch sets the modification time of path to now.
func Touch(path string) error {
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// TrimExt strips the last extension from a file name or path.
func TrimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Within reports whether target is root itself or lies below it. Both
// arguments must be cleaned absolute paths.
func Within(root, target string) bool {
	if root == target {
		return true
	}
	return strings.HasPrefix(target, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
