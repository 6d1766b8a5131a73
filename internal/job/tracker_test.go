package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/domain"
	"voxsplit/internal/mocks"
	"voxsplit/internal/redact"
)

func newTestJob(t *testing.T) *domain.Job {
	t.Helper()
	j, err := domain.NewJob("episode.mp3", "/uploads/abc.mp3", 1024)
	require.NoError(t, err)
	return j
}

func TestTrackerWriteThrough(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))

	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))

	// Durable row and cache agree.
	stored, err := jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, 10, stored.Progress)

	snap, ok := registry.Snapshot(j.ID)
	require.True(t, ok)
	assert.Equal(t, 10, snap.Progress)
}

func TestTrackerWriteStorageFailureLeavesCache(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))

	jobs.SetFailure(errors.New("connection refused"))

	err := tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 25, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStorage))

	// The cache must still hold the last acknowledged state, never the
	// failed write.
	snap, ok := registry.Snapshot(j.ID)
	require.True(t, ok)
	assert.Equal(t, 10, snap.Progress)
}

func TestTrackerWriteRefusedAfterCancel(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))

	registry.SetCancelled(j.ID)

	// In-flight progress may not land after a cancellation request.
	err := tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepTranscribing, 30, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCancelled))

	// Terminal writes still go through.
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusFailed, domain.JobStepCancelled, 0, "cancelled by user"))
}

func TestTrackerTerminalStateIsFinal(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusCompleted, domain.JobStepCompleted, 100, ""))

	// A straggling write cannot reopen a completed job.
	err := tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepSeparating, 60, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	// Neither can a late force-fail flip completed to failed.
	err = tracker.ForceFail(ctx, j.ID, domain.JobStepCancelled, "cancelled by user")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	stored, gerr := jobs.GetJob(ctx, j.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, domain.JobStepCompleted, stored.Step)
}

func TestTrackerTerminalGuardHoldsWithoutCache(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, jobs.UpdateJobStatus(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))
	require.NoError(t, jobs.UpdateJobStatus(ctx, j.ID, domain.JobStatusFailed, domain.JobStepError, 0, "boom"))

	// No registry entry: the durable guard alone must refuse the write.
	err := tracker.Write(ctx, j.ID, domain.JobStatusCompleted, domain.JobStepCompleted, 100, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	stored, gerr := jobs.GetJob(ctx, j.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

func TestTrackerRefusesStepRegression(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepSeparating, 60, ""))

	// The pipeline only moves forward; an out-of-order stage write is a bug.
	err := tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, 10, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	snap, ok := registry.Snapshot(j.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStepSeparating, snap.Step)
}

func TestTrackerReadCacheFastPath(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepTranscribing, 40, ""))

	view, err := tracker.Read(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, view.FromCache)
	assert.Equal(t, 40, view.Progress)
	assert.Equal(t, domain.JobStepTranscribing, view.Step)
}

func TestTrackerReadTerminalBypassesCache(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	require.NoError(t, tracker.Write(ctx, j.ID, domain.JobStatusCompleted, domain.JobStepCompleted, 100, ""))

	// Plant a divergent cached snapshot; terminal reads must ignore it and
	// serve the durable row.
	registry.Put(j.ID, Snapshot{Status: domain.JobStatusCompleted, Progress: 42})

	view, err := tracker.Read(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, view.FromCache)
	assert.Equal(t, 100, view.Progress)

	// Terminal reads evict the registry entry.
	_, ok := registry.Snapshot(j.ID)
	assert.False(t, ok)
}

func TestTrackerReadCacheMissFallsToStore(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	tracker := NewStatusTracker(jobs, NewRegistry())
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))

	view, err := tracker.Read(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, view.FromCache)
	assert.Equal(t, domain.JobStatusPending, view.Status)
}

func TestTrackerReadUnknownJob(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker(mocks.NewJobStore(), NewRegistry())

	_, err := tracker.Read(context.Background(), newTestJob(t).ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTrackerForceFail(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))
	registry.SetCancelled(j.ID)

	// ForceFail works even with the cancel flag up.
	require.NoError(t, tracker.ForceFail(ctx, j.ID, domain.JobStepCancelled, "cancelled by user"))

	stored, err := jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Equal(t, domain.JobStepCancelled, stored.Step)
	assert.Equal(t, "cancelled by user", stored.ErrorMessage)
}

func TestTrackerRedactsErrorMessages(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewJobStore()
	registry := NewRegistry()
	tracker := NewStatusTracker(jobs, registry)
	ctx := context.Background()

	j := newTestJob(t)
	require.NoError(t, jobs.CreateJob(ctx, j))

	msg := "connect failed: postgres://app:hunter2@db:5432/voxsplit"
	require.NoError(t, tracker.ForceFail(ctx, j.ID, domain.JobStepError, msg))

	stored, err := jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.ErrorMessage, "hunter2")
	assert.Contains(t, stored.ErrorMessage, redact.ConnStringPlaceholder)

	// The cached snapshot is scrubbed too.
	snap, ok := registry.Snapshot(j.ID)
	require.True(t, ok)
	assert.NotContains(t, snap.ErrorMessage, "hunter2")
}
