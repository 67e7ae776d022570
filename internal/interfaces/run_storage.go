package interfaces

import (
	"time"

	"github.com/ternarybob/vindex/internal/models"
)

// RunStorage persists the pipeline run journal
type RunStorage interface {
	// SaveRun inserts or updates a run record
	SaveRun(run *models.PipelineRun) error

	// GetRun returns a run by id
	GetRun(id string) (*models.PipelineRun, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(limit int) ([]*models.PipelineRun, error)

	// DeleteRunsBefore removes runs started before the cutoff, returning
	// the number deleted
	DeleteRunsBefore(cutoff time.Time) (int, error)
}
