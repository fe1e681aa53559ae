package models

import "time"

// DirectoryZip describes the cached zip served for a directory.
type DirectoryZip struct {
	// SourceDir is the absolute source directory.
	SourceDir string
	// ZipPath is the absolute path of the cached archive.
	ZipPath    string
	ZipModTime time.Time
	Size       int64
	// Built is set when this request produced the archive rather than
	// reusing one.
	Built bool
}
