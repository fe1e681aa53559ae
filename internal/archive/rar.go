package archive

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/nwaples/rardecode"
)

type rarReader struct{}

// Inspect walks the file headers. RAR has no central directory, so every
// header is visited; packed data is skipped, not decoded.
func (rarReader) Inspect(path string) (Info, error) {
	rr, err := rardecode.OpenReader(path, "")
	if err != nil {
		return Info{}, corrupt(path, err)
	}
	defer rr.Close()

	var info Info
	for {
		h, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Info{}, corrupt(path, err)
		}
		info.Entries++
		if !h.IsDir && !h.UnKnownSize {
			info.TotalSize += h.UnPackedSize
		}
	}
	return info, nil
}

func (rarReader) Extract(ctx context.Context, path, dest string) error {
	rr, err := rardecode.OpenReader(path, "")
	if err != nil {
		return corrupt(path, err)
	}
	defer rr.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		h, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return corrupt(path, err)
		}

		target, err := entryPath(dest, h.Name)
		if err != nil {
			return err
		}

		if h.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := writeEntry(target, rr, h.Mode()); err != nil {
			return err
		}
	}
}
