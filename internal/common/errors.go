// Package common defines sentinel errors shared by the dirlist server
// layers. Callers should use errors.Is to match these values; most of them
// reach the caller wrapped with the offending path or key.
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound        = errors.New("not found")
	ErrDirectoryNotFound = errors.New("directory not found")

	// Generic failure at the transport boundary.
	ErrorInternal = errors.New("internal error")

	// Validation errors, detected before any async work starts.
	ErrUnsupportedType = errors.New("unsupported archive type")
	ErrSourceNotFound  = errors.New("source file not found")
	ErrNotDirectory    = errors.New("not a directory")
	ErrCorruptArchive  = errors.New("corrupt archive")

	// Directory download limits.
	ErrSizeExceeded = errors.New("directory exceeds maximum download size")

	// Coordination errors.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	ErrMirrorDisabled = errors.New("object storage mirror is disabled")
)
