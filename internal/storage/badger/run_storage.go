package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage persists the pipeline run journal in Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a run journal store
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRun inserts or updates a run record
func (s *RunStorage) SaveRun(run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run by id
func (s *RunStorage) GetRun(id string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *RunStorage) ListRuns(limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []*models.PipelineRun
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse().Limit(limit)
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// DeleteRunsBefore removes runs started before the cutoff, returning
// the number deleted
func (s *RunStorage) DeleteRunsBefore(cutoff time.Time) (int, error) {
	var stale []*models.PipelineRun
	if err := s.db.Store().Find(&stale, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale runs: %w", err)
	}

	deleted := 0
	for _, run := range stale {
		if err := s.db.Store().Delete(run.ID, &models.PipelineRun{}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to delete stale run")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Run journal pruned")
	}
	return deleted, nil
}
