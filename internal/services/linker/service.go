// -----------------------------------------------------------------------
// Package linker executes bulk document/vehicle link operations with
// partial-success aggregation and optimistic local reconciliation.
// -----------------------------------------------------------------------

package linker

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// RefreshRequester schedules a background reconciliation fetch.
// Optimistic state is never treated as durable truth; every mutation is
// followed by a real refetch.
type RefreshRequester interface {
	RequestRefresh()
}

// ClassificationSource rebuilds the classification from source of truth
type ClassificationSource interface {
	Fetch(ctx context.Context) (*models.Classification, error)
}

// Service executes link/unlink/create-and-link operations and keeps the
// local classification snapshot consistent between refreshes.
type Service struct {
	vehicles   interfaces.VehicleClient
	source     ClassificationSource
	reconciler RefreshRequester
	logger     arbor.ILogger

	mu       sync.RWMutex
	snapshot *models.Classification
}

// NewService creates a batch link executor
func NewService(vehicles interfaces.VehicleClient, source ClassificationSource, reconciler RefreshRequester, logger arbor.ILogger) *Service {
	return &Service{
		vehicles:   vehicles,
		source:     source,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Refresh rebuilds the classification snapshot from source of truth.
// The snapshot is fully replaced, never incrementally merged.
func (s *Service) Refresh(ctx context.Context) (*models.Classification, error) {
	classification, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = classification
	s.mu.Unlock()

	return classification, nil
}

// Snapshot returns the current local classification, or nil before the
// first refresh
func (s *Service) Snapshot() *models.Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// LinkBatch links documents to a vehicle. The server reports per-item
// results; locally the linked ids are optimistically removed from their
// group while ids in FailedIDs stay, retryable by reselecting them.
func (s *Service) LinkBatch(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("no documents selected")
	}

	result, err := s.vehicles.LinkDocuments(ctx, vehicleID, documentIDs)
	if err != nil {
		return nil, err
	}

	s.removeLinked(documentIDs, result.FailedIDs)
	s.reconciler.RequestRefresh()

	s.logger.Info().
		Str("vehicle_id", vehicleID).
		Int("linked", result.LinkedCount).
		Int("failed", len(result.FailedIDs)).
		Msg("Link batch executed")

	return result, nil
}

// UnlinkBatch removes document links with the same per-item aggregation
func (s *Service) UnlinkBatch(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required")
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("no documents selected")
	}

	result, err := s.vehicles.UnlinkDocuments(ctx, vehicleID, documentIDs)
	if err != nil {
		return nil, err
	}

	// Unlinked documents reappear in a bucket only the server can
	// determine; reconcile via refetch instead of local arithmetic.
	s.reconciler.RequestRefresh()

	s.logger.Info().
		Str("vehicle_id", vehicleID).
		Int("unlinked", result.LinkedCount).
		Int("failed", len(result.FailedIDs)).
		Msg("Unlink batch executed")

	return result, nil
}

// CreateVehicleAndLink creates a vehicle record and links documents
// transactionally on the server. On failure the group is retained for
// retry rather than assumed linked.
func (s *Service) CreateVehicleAndLink(ctx context.Context, vrn string, documentIDs []string, details models.VehicleDetails) (*models.Vehicle, *models.LinkBatchResult, error) {
	if vrn == "" {
		return nil, nil, fmt.Errorf("identifier is required")
	}
	if len(documentIDs) == 0 {
		return nil, nil, fmt.Errorf("no documents selected")
	}

	vehicle, result, err := s.vehicles.CreateVehicleAndLink(ctx, vrn, documentIDs, details)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("vrn", vrn).
			Msg("Create-and-link failed, group retained for retry")
		return nil, nil, err
	}

	s.removeLinked(documentIDs, result.FailedIDs)
	s.reconciler.RequestRefresh()

	s.logger.Info().
		Str("vrn", vrn).
		Str("vehicle_id", vehicle.ID).
		Int("linked", result.LinkedCount).
		Msg("Vehicle created and documents linked")

	return vehicle, result, nil
}

// Link links a single document. Re-linking an already-linked document
// is accepted; the backend treats delivery as at-least-once.
func (s *Service) Link(ctx context.Context, vehicleID, documentID string) error {
	if err := s.vehicles.LinkDocument(ctx, vehicleID, documentID); err != nil {
		return err
	}
	s.removeLinked([]string{documentID}, nil)
	s.reconciler.RequestRefresh()
	return nil
}

// Unlink removes a single document link
func (s *Service) Unlink(ctx context.Context, vehicleID, documentID string) error {
	if err := s.vehicles.UnlinkDocument(ctx, vehicleID, documentID); err != nil {
		return err
	}
	s.reconciler.RequestRefresh()
	return nil
}

// removeLinked applies the optimistic update: sent ids that the server
// did not report as failed disappear from their group; emptied groups
// are dropped. Documents in other buckets are untouched.
func (s *Service) removeLinked(sentIDs, failedIDs []string) {
	failed := make(map[string]bool, len(failedIDs))
	for _, id := range failedIDs {
		failed[id] = true
	}
	linked := make(map[string]bool, len(sentIDs))
	for _, id := range sentIDs {
		if !failed[id] {
			linked[id] = true
		}
	}
	if len(linked) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return
	}

	// Snapshots handed out by Snapshot() stay immutable: build a fresh
	// Classification and swap the pointer instead of editing in place.
	next := &models.Classification{
		Processed:  s.snapshot.Processed,
		Groups:     make([]models.Group, 0, len(s.snapshot.Groups)),
		Unassigned: make([]models.Document, 0, len(s.snapshot.Unassigned)),
	}
	for _, group := range s.snapshot.Groups {
		docs := make([]models.Document, 0, len(group.Documents))
		for _, doc := range group.Documents {
			if !linked[doc.ID] {
				docs = append(docs, doc)
			}
		}
		if len(docs) == 0 {
			continue
		}
		group.Documents = docs
		next.Groups = append(next.Groups, group)
	}

	// Manual assignments also remove documents from the unassigned bucket
	for _, doc := range s.snapshot.Unassigned {
		if !linked[doc.ID] {
			next.Unassigned = append(next.Unassigned, doc)
		}
	}

	s.snapshot = next
}
