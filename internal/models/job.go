// -----------------------------------------------------------------------
// Job - remote conversion/indexing job tracked via status polling
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a remote job.
// Transitions are strictly forward; a terminal status never changes.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ParseJobStatus converts a backend status string into a JobStatus.
// Unknown values are rejected so raw strings never leak past the client layer.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return JobStatus(s), nil
	default:
		return "", fmt.Errorf("unknown job status: %q", s)
	}
}

// IsTerminal returns true if no further status updates can occur
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobKind identifies the backend stage a job belongs to
type JobKind string

const (
	JobKindConversion JobKind = "conversion"
	JobKindIndexing   JobKind = "indexing"
)

// JobProgress tracks per-file progress reported by the backend
type JobProgress struct {
	Status         string  `json:"status"`
	TotalFiles     int     `json:"total_files"`
	ConvertedFiles int     `json:"converted_files"`
	FailedFiles    int     `json:"failed_files"`
	Percentage     float64 `json:"percentage"`
}

// JobStatistics carries aggregate counters reported on indexing jobs
type JobStatistics struct {
	DocumentsProcessed int `json:"documents_processed"`
	ChunksIndexed      int `json:"chunks_indexed"`
}

// Job represents a long-running remote task (conversion or indexing).
// Created when a stage starts and discarded when the coordinator resets
// for the next run.
type Job struct {
	ID         string        `json:"id"`
	Kind       JobKind       `json:"kind"`
	Status     JobStatus     `json:"status"`
	Progress   JobProgress   `json:"progress"`
	Statistics JobStatistics `json:"statistics"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IsTerminal returns true if the job reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}
