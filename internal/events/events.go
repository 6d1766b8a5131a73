package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobEventType identifies which lifecycle transition an event describes.
type JobEventType string

// Lifecycle transitions emitted by the job manager.
const (
	JobSubmitted JobEventType = "job.submitted"
	JobStarted   JobEventType = "job.started"
	JobCompleted JobEventType = "job.completed"
	JobFailed    JobEventType = "job.failed"
	JobCancelled JobEventType = "job.cancelled"
	JobRequeued  JobEventType = "job.requeued"
)

// JobEvent describes one lifecycle transition of a job.
type JobEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// JobID identifies the job the transition belongs to.
	JobID uuid.UUID `json:"job_id"`

	// Type is the lifecycle transition.
	Type JobEventType `json:"type"`

	// Detail carries a human-readable note, e.g. the failure message.
	Detail string `json:"detail,omitempty"`

	// OccurredAt is when the transition happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobEvent creates a JobEvent for the given job and transition.
func NewJobEvent(jobID uuid.UUID, eventType JobEventType, detail string) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		JobID:      jobID,
		Type:       eventType,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler processes job lifecycle events.
type Handler interface {
	// HandleEvent processes one event. Returning an error never blocks the
	// pipeline; the emitter logs it and moves on.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// Emitter publishes job lifecycle events to registered handlers.
type Emitter interface {
	EmitEvent(ctx context.Context, event *JobEvent) error
}
