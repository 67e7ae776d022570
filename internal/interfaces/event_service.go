package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventPipelineState fires on every coordinator state transition
	EventPipelineState EventType = "pipeline_state"
	// EventUploadProgress fires per uploaded file during a batch
	EventUploadProgress EventType = "upload_progress"
	// EventJobProgress fires on every polled job status update
	EventJobProgress EventType = "job_progress"
	// EventRunRefresh requests a document/statistics refresh after a run
	EventRunRefresh EventType = "run_refresh"
	// EventClassificationChanged fires after a reconciliation fetch
	EventClassificationChanged EventType = "classification_changed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
