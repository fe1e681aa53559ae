package common

// ZipExtension is the suffix appended to cached directory snapshots and
// expected on directory download requests.
const ZipExtension = ".zip"

// DefaultMaxDirectoryDownloadSize caps the total size of a directory that
// may be zipped on demand (1 GiB).
const DefaultMaxDirectoryDownloadSize int64 = 1 << 30
