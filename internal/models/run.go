// -----------------------------------------------------------------------
// Pipeline Run - journal record of a single coordinator run
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the coordinator's state machine position
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateUploading  RunState = "uploading"
	RunStateConverting RunState = "converting"
	RunStateIndexing   RunState = "indexing"
	RunStateCompleted  RunState = "completed"
	RunStateFailed     RunState = "failed"
)

// IsTerminal returns true when the run can no longer change state
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// PipelineRun is the persisted journal record of one coordinator run.
// The coordinator updates it at every state transition; the run history
// API serves it back out.
type PipelineRun struct {
	ID              string             `json:"id" badgerhold:"key"`
	State           RunState           `json:"state"`
	Upload          *UploadBatchResult `json:"upload,omitempty"`
	ConversionJobID string             `json:"conversion_job_id,omitempty"`
	IndexingJobID   string             `json:"indexing_job_id,omitempty"`
	Cancelled       bool               `json:"cancelled"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
}

// NewPipelineRun creates a run record in the uploading state
func NewPipelineRun() *PipelineRun {
	return &PipelineRun{
		ID:        "run_" + uuid.New().String(),
		State:     RunStateUploading,
		StartedAt: time.Now(),
	}
}

// MarkFinished stamps the terminal time if not already set
func (r *PipelineRun) MarkFinished() {
	if r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
}
