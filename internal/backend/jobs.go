package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// taskResponse is the shared shape of start-job responses
type taskResponse struct {
	TaskID string `json:"task_id"`
}

// jobStatusResponse is the raw status payload for conversion/indexing jobs
type jobStatusResponse struct {
	Progress struct {
		Status         string  `json:"status"`
		TotalFiles     int     `json:"total_files"`
		ConvertedFiles int     `json:"converted_files"`
		FailedFiles    int     `json:"failed_files"`
		Percentage     float64 `json:"percentage"`
	} `json:"progress"`
	Statistics struct {
		DocumentsProcessed int `json:"documents_processed"`
		ChunksIndexed      int `json:"chunks_indexed"`
	} `json:"statistics"`
	Error string `json:"error,omitempty"`
}

// toJob converts a raw status payload into a models.Job, rejecting
// unknown status strings at the client boundary.
func (r *jobStatusResponse) toJob(taskID string, kind models.JobKind) (*models.Job, error) {
	status, err := models.ParseJobStatus(r.Progress.Status)
	if err != nil {
		return nil, fmt.Errorf("backend returned invalid status for %s job %s: %w", kind, taskID, err)
	}

	return &models.Job{
		ID:     taskID,
		Kind:   kind,
		Status: status,
		Progress: models.JobProgress{
			Status:         r.Progress.Status,
			TotalFiles:     r.Progress.TotalFiles,
			ConvertedFiles: r.Progress.ConvertedFiles,
			FailedFiles:    r.Progress.FailedFiles,
			Percentage:     r.Progress.Percentage,
		},
		Statistics: models.JobStatistics{
			DocumentsProcessed: r.Statistics.DocumentsProcessed,
			ChunksIndexed:      r.Statistics.ChunksIndexed,
		},
		Error:     r.Error,
		UpdatedAt: time.Now(),
	}, nil
}

// StartConversion starts a conversion job and returns its task id
func (c *Client) StartConversion(ctx context.Context, opts interfaces.ConversionOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, "/api/conversion/start", opts, &resp); err != nil {
		return "", fmt.Errorf("failed to start conversion: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("conversion start returned empty task id")
	}
	return resp.TaskID, nil
}

// GetConversionStatus fetches the current status of a conversion job
func (c *Client) GetConversionStatus(ctx context.Context, taskID string) (*models.Job, error) {
	var resp jobStatusResponse
	if err := c.get(ctx, "/api/conversion/status/"+taskID, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch conversion status: %w", err)
	}
	return resp.toJob(taskID, models.JobKindConversion)
}

// StartIndexing starts an indexing job and returns its task id
func (c *Client) StartIndexing(ctx context.Context, opts interfaces.IndexingOptions) (string, error) {
	var resp taskResponse
	if err := c.post(ctx, "/api/indexing/start", opts, &resp); err != nil {
		return "", fmt.Errorf("failed to start indexing: %w", err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("indexing start returned empty task id")
	}
	return resp.TaskID, nil
}

// GetIndexingStatus fetches the current status of an indexing job
func (c *Client) GetIndexingStatus(ctx context.Context, taskID string) (*models.Job, error) {
	var resp jobStatusResponse
	if err := c.get(ctx, "/api/indexing/status/"+taskID, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch indexing status: %w", err)
	}
	return resp.toJob(taskID, models.JobKindIndexing)
}

// StopIndexing requests cancellation of an indexing job. The resulting
// cancelled status arrives through polling and is terminal, not an error.
func (c *Client) StopIndexing(ctx context.Context, taskID string) error {
	if err := c.post(ctx, "/api/indexing/stop/"+taskID, nil, nil); err != nil {
		return fmt.Errorf("failed to stop indexing: %w", err)
	}
	return nil
}
