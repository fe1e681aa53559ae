package services

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/dirlist/internal/common"
)

// cleanRel normalizes a client supplied path relative to the root. The
// result never starts with "/" and never climbs above the root.
func cleanRel(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+rel), "/")
}

// resolve maps a relative request path to an absolute path below root.
func resolve(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(cleanRel(rel)))
}

// ParseDownloadPath validates a directory download request path such as
// "docs/reports.zip" and returns the directory part, "docs/reports".
func ParseDownloadPath(p string) (string, error) {
	ext := path.Ext(p)
	if !strings.EqualFold(ext, common.ZipExtension) {
		return "", fmt.Errorf("%w: %s does not end in %s", common.ErrNotDirectory, p, common.ZipExtension)
	}
	return cleanRel(strings.TrimSuffix(p, ext)), nil
}
