// -----------------------------------------------------------------------
// Upload Batch Runner - sequential file upload with per-file outcome
// classification
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// Uploader submits files to the upload endpoint strictly sequentially.
// Sequential submission bounds backend load and keeps duplicate and
// failure counting deterministic.
type Uploader struct {
	client       interfaces.DocumentClient
	eventService interfaces.EventService
	logger       arbor.ILogger
	maxFiles     int
	autoIndex    bool
}

// NewUploader creates an upload batch runner
func NewUploader(client interfaces.DocumentClient, eventService interfaces.EventService, maxFiles int, autoIndex bool, logger arbor.ILogger) *Uploader {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Uploader{
		client:       client,
		eventService: eventService,
		logger:       logger,
		maxFiles:     maxFiles,
		autoIndex:    autoIndex,
	}
}

// Run uploads the batch one file at a time and aggregates outcomes.
// A single file's failure never aborts the rest of the batch; each file
// lands in exactly one of uploaded/duplicate/failed.
func (u *Uploader) Run(ctx context.Context, files []interfaces.UploadFile) (*models.UploadBatchResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	if len(files) > u.maxFiles {
		return nil, fmt.Errorf("batch of %d files exceeds the %d file limit", len(files), u.maxFiles)
	}

	result := &models.UploadBatchResult{}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload batch cancelled after %d of %d files: %w", i, len(files), err)
		}

		outcome, err := u.client.Upload(ctx, file, u.autoIndex)
		if err != nil {
			u.logger.Warn().
				Err(err).
				Str("filename", file.Name).
				Msg("File upload failed, continuing batch")

			outcome = &models.UploadOutcome{
				Filename: file.Name,
				Err:      err.Error(),
			}
			result.FailedFiles = append(result.FailedFiles, models.UploadFailure{
				Name:   file.Name,
				Reason: err.Error(),
			})
		} else if outcome.IsDuplicate {
			result.DuplicateCount++
			result.DuplicateFilenames = append(result.DuplicateFilenames, file.Name)
			u.logger.Info().
				Str("filename", file.Name).
				Msg("Duplicate file skipped by backend")
		} else {
			result.UploadedCount++
			u.logger.Info().
				Str("filename", file.Name).
				Str("document_id", outcome.DocumentID).
				Msg("File uploaded")
		}

		result.Outcomes = append(result.Outcomes, *outcome)

		u.eventService.Publish(ctx, interfaces.Event{
			Type: interfaces.EventUploadProgress,
			Payload: map[string]interface{}{
				"filename":  file.Name,
				"index":     i + 1,
				"total":     len(files),
				"duplicate": outcome.IsDuplicate,
				"failed":    outcome.Err != "",
			},
		})
	}

	u.logger.Info().
		Int("uploaded", result.UploadedCount).
		Int("duplicates", result.DuplicateCount).
		Int("failed", len(result.FailedFiles)).
		Msg("Upload batch finished")

	return result, nil
}
