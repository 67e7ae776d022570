package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// Service holds the current pipeline state snapshot and broadcasts
// state changes on the event bus
type Service struct {
	state        models.RunState
	runID        string
	mu           sync.RWMutex
	eventService interfaces.EventService
	logger       arbor.ILogger
	metadata     map[string]interface{}
}

// NewService creates a new status service
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		state:        models.RunStateIdle,
		eventService: eventService,
		logger:       logger,
		metadata:     make(map[string]interface{}),
	}
}

// GetState returns the current pipeline state (thread-safe)
func (s *Service) GetState() models.RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the pipeline state and broadcasts the change
func (s *Service) SetState(state models.RunState, runID string, metadata map[string]interface{}) {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	s.runID = runID
	if metadata != nil {
		s.metadata = metadata
	} else {
		s.metadata = make(map[string]interface{})
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("old_state", string(oldState)).
		Str("new_state", string(state)).
		Str("run_id", runID).
		Msg("Pipeline state changed")

	payload := map[string]interface{}{
		"state":     string(state),
		"run_id":    runID,
		"metadata":  metadata,
		"timestamp": time.Now(),
	}
	event := interfaces.Event{
		Type:    interfaces.EventPipelineState,
		Payload: payload,
	}
	s.eventService.Publish(context.Background(), event)
}

// GetStatus returns the full status including state, run id and metadata
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Deep copy metadata to avoid concurrent modification
	metadataCopy := make(map[string]interface{})
	for k, v := range s.metadata {
		metadataCopy[k] = v
	}

	return map[string]interface{}{
		"state":     string(s.state),
		"run_id":    s.runID,
		"metadata":  metadataCopy,
		"timestamp": time.Now(),
	}
}
