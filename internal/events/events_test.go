package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []*JobEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *JobEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestNewJobEvent(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	event := NewJobEvent(jobID, JobFailed, "converting failed: boom")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, jobID, event.JobID)
	assert.Equal(t, JobFailed, event.Type)
	assert.Equal(t, "converting failed: boom", event.Detail)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestEmitterDeliversToAllHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(slog.Default())
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event := NewJobEvent(uuid.New(), JobCompleted, "")
	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, event.ID, first.events[0].ID)
}

func TestEmitterContinuesPastFailingHandler(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(slog.Default())
	failing := &recordingHandler{err: errors.New("handler broke")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	err := emitter.EmitEvent(context.Background(), NewJobEvent(uuid.New(), JobStarted, ""))
	require.Error(t, err)
	assert.Equal(t, "handler broke", err.Error())

	// The healthy handler still saw the event.
	assert.Len(t, healthy.events, 1)
}

func TestEmitterNoHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(slog.Default())
	assert.NoError(t, emitter.EmitEvent(context.Background(), NewJobEvent(uuid.New(), JobSubmitted, "")))
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	handler := NewLogHandler(slog.Default())
	assert.NoError(t, handler.HandleEvent(context.Background(), NewJobEvent(uuid.New(), JobRequeued, "")))
}
