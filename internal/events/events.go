package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies which lifecycle transition a JobEvent describes.
type EventType string

// Lifecycle event types emitted by the job processor
const (
	JobSubmitted EventType = "job.submitted"
	JobStarted   EventType = "job.started"
	JobPaused    EventType = "job.paused"
	JobResumed   EventType = "job.resumed"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"
	JobCancelled EventType = "job.cancelled"
	JobRemoved   EventType = "job.removed"
)

// JobEvent describes one state change of a job.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle transition that happened
	Type EventType `json:"type"`

	// JobID is the caller-supplied job identifier
	JobID string `json:"job_id"`

	// Generation identifies the submission of JobID the event belongs to.
	// A resubmitted ID gets a new generation.
	Generation uuid.UUID `json:"generation"`

	// Status is the job status after the transition
	Status string `json:"status"`

	// Error carries the failure or cancellation message, if any
	Error string `json:"error,omitempty"`

	// Duration is the time between start and finish for terminal events
	Duration time.Duration `json:"duration,omitempty"`

	// OccurredAt is the timestamp of the transition
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobEvent creates a JobEvent with a fresh ID and the current time.
func NewJobEvent(eventType EventType, jobID string, status string) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		Type:       eventType,
		JobID:      jobID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event marks the end of a job.
func (e *JobEvent) IsTerminal() bool {
	switch e.Type {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *JobEvent) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *JobEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *JobEvent) error {
	return f(ctx, event)
}
