package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"strings"
)

type zipReader struct{}

// Inspect sums the uncompressed sizes from the central directory.
// archive/zip already prefers the zip64 extra field when present.
func (zipReader) Inspect(path string) (Info, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Info{}, corrupt(path, err)
	}
	defer zr.Close()

	var info Info
	for _, f := range zr.File {
		info.Entries++
		info.TotalSize += int64(f.UncompressedSize64)
	}
	return info, nil
}

func (zipReader) Extract(ctx context.Context, path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return corrupt(path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := entryPath(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	return writeEntry(target, rc, f.Mode())
}
