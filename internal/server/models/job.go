// Package models defines the records exchanged between the coordination
// stores, the services and the transport layer.
package models

import "time"

// JobState is the lifecycle state of an extraction job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// ExtractionJob is the stored metadata of one archive extraction. Live jobs
// are always JobRunning; finished ones carry FinishedAt and, on failure,
// the error text.
type ExtractionJob struct {
	ID              string
	SourcePath      string
	DestinationPath string
	// TotalSize is the sum of uncompressed entry sizes; always positive.
	TotalSize  int64
	CreatedAt  time.Time
	State      JobState
	Error      string
	FinishedAt time.Time
}

// ExtractionProgress is derived on every query and never stored.
type ExtractionProgress struct {
	ID              string
	TotalSize       int64
	ExtractedSize   int64
	DestinationPath string
	State           JobState
	Error           string
}
