// -----------------------------------------------------------------------
// Upload batch results - per-file outcomes and the decision they feed
// into the pipeline coordinator
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
)

// UploadOutcome is the immutable per-file result of a single upload
type UploadOutcome struct {
	Filename    string `json:"filename"`
	DocumentID  string `json:"document_id,omitempty"`
	IsDuplicate bool   `json:"is_duplicate"`
	IsNew       bool   `json:"is_new"`
	Err         string `json:"error,omitempty"`
}

// UploadFailure names a file that failed validation or upload
type UploadFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadBatchResult aggregates the outcomes of a sequential upload batch
type UploadBatchResult struct {
	UploadedCount      int             `json:"uploaded_count"`
	DuplicateCount     int             `json:"duplicate_count"`
	DuplicateFilenames []string        `json:"duplicate_filenames,omitempty"`
	FailedFiles        []UploadFailure `json:"failed_files,omitempty"`
	Outcomes           []UploadOutcome `json:"outcomes,omitempty"`
}

// BatchDecision is the coordinator's next move after an upload batch
type BatchDecision string

const (
	// DecisionProceed moves the run on to conversion
	DecisionProceed BatchDecision = "proceed"
	// DecisionSkipConversion ends the run without a conversion job
	// (everything already present and indexed)
	DecisionSkipConversion BatchDecision = "skip_conversion"
	// DecisionAbort fails the run (nothing was uploaded, nothing to skip for)
	DecisionAbort BatchDecision = "abort"
)

// TotalFiles returns the number of files the batch attempted
func (r *UploadBatchResult) TotalFiles() int {
	return r.UploadedCount + r.DuplicateCount + len(r.FailedFiles)
}

// Decision applies the stage-gating rule: no uploads but duplicates
// means conversion is pointless, no uploads and all failures means the
// run cannot continue, otherwise conversion proceeds.
func (r *UploadBatchResult) Decision() BatchDecision {
	if r.UploadedCount == 0 && r.DuplicateCount > 0 {
		return DecisionSkipConversion
	}
	if r.UploadedCount == 0 {
		return DecisionAbort
	}
	return DecisionProceed
}

// Summary renders a user-facing message naming duplicates and failures
// so a retry decision needs no re-fetch.
func (r *UploadBatchResult) Summary() string {
	parts := []string{fmt.Sprintf("%d uploaded", r.UploadedCount)}

	if r.DuplicateCount > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate (%s)",
			r.DuplicateCount, strings.Join(r.DuplicateFilenames, ", ")))
	}

	if len(r.FailedFiles) > 0 {
		names := make([]string, 0, len(r.FailedFiles))
		for _, f := range r.FailedFiles {
			names = append(names, fmt.Sprintf("%s: %s", f.Name, f.Reason))
		}
		parts = append(parts, fmt.Sprintf("%d failed (%s)",
			len(r.FailedFiles), strings.Join(names, ", ")))
	}

	return strings.Join(parts, ", ")
}
