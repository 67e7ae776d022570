// -----------------------------------------------------------------------
// Package reconcile refreshes the classification snapshot from source
// of truth: on a cron schedule, after every pipeline run, and on demand
// after optimistic link mutations.
// -----------------------------------------------------------------------

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// Refresher rebuilds the classification snapshot (the linker service)
type Refresher interface {
	Refresh(ctx context.Context) (*models.Classification, error)
}

// Scheduler coordinates background reconciliation fetches
type Scheduler struct {
	refresher    Refresher
	eventService interfaces.EventService
	cron         *cron.Cron
	logger       arbor.ILogger
	debounce     time.Duration

	mu          sync.Mutex
	lastRefresh time.Time
	running     bool

	pending chan struct{}
	stopCh  chan struct{}
}

// NewScheduler creates a reconciliation scheduler
func NewScheduler(refresher Refresher, eventService interfaces.EventService, debounce time.Duration, logger arbor.ILogger) *Scheduler {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Scheduler{
		refresher:    refresher,
		eventService: eventService,
		cron:         cron.New(),
		logger:       logger,
		debounce:     debounce,
		pending:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start registers the cron schedule, subscribes to run completion
// events, and launches the refresh worker.
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("reconcile scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, s.RequestRefresh); err != nil {
			return fmt.Errorf("failed to register reconcile schedule: %w", err)
		}
		s.cron.Start()
	}

	// A finished pipeline run always triggers a refresh, regardless of
	// the run's outcome.
	s.eventService.Subscribe(interfaces.EventRunRefresh, func(ctx context.Context, event interfaces.Event) error {
		s.RequestRefresh()
		return nil
	})

	common.SafeGo(s.logger, "reconcileWorker", s.worker)

	s.logger.Info().Str("schedule", schedule).Msg("Reconcile scheduler started")
	return nil
}

// RequestRefresh schedules a background reconciliation fetch. Requests
// arriving while one is pending are coalesced.
func (s *Scheduler) RequestRefresh() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Stop halts the cron schedule and the refresh worker
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cron.Stop()
	close(s.stopCh)
	s.logger.Info().Msg("Reconcile scheduler stopped")
}

// worker serializes refreshes and enforces the debounce gap between them
func (s *Scheduler) worker() {
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.pending:
		}

		s.mu.Lock()
		wait := s.debounce - time.Since(s.lastRefresh)
		s.mu.Unlock()

		if wait > 0 {
			select {
			case <-s.stopCh:
				return
			case <-time.After(wait):
			}
		}

		s.refresh()
	}
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	classification, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Reconciliation fetch failed")
		return
	}

	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	s.eventService.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventClassificationChanged,
		Payload: map[string]interface{}{
			"processed":  len(classification.Processed),
			"groups":     len(classification.Groups),
			"unassigned": len(classification.Unassigned),
		},
	})

	s.logger.Debug().
		Int("groups", len(classification.Groups)).
		Msg("Classification reconciled")
}
