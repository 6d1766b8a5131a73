package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/domain"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/redact"
	"voxsplit/internal/store"
)

// StatusView is what status reads return: the durable or cached state of a
// job plus where it came from.
type StatusView struct {
	JobID        uuid.UUID
	Status       domain.JobStatus
	Step         domain.JobStep
	Progress     int
	ErrorMessage string
	SpeakerCount int
	FromCache    bool
}

// StatusTracker coordinates the durable store and the in-process registry.
// Writes go durable-first: the cache is only updated after the store write
// succeeds, so the cache can lag the store but never lead it.
type StatusTracker struct {
	jobs     store.JobStore
	registry *Registry
}

// NewStatusTracker creates a tracker over the given store and registry.
func NewStatusTracker(jobs store.JobStore, registry *Registry) *StatusTracker {
	return &StatusTracker{jobs: jobs, registry: registry}
}

// Write persists a status update and then refreshes the cache. On a store
// failure the cache keeps its previous snapshot and the error is returned
// wrapped as a storage error.
//
// A job whose cancellation flag is up refuses non-terminal progress writes:
// once cancel has been requested the only snapshots that may land are the
// terminal ones, so a slow stage cannot resurrect a cancelled job's progress.
//
// Writes are also checked against the status state machine and the pipeline
// step order. The cached snapshot catches invalid transitions and step
// regressions early; the store's terminal guard is the authority when the
// cache is cold or stale.
func (t *StatusTracker) Write(ctx context.Context, id uuid.UUID, status domain.JobStatus, step domain.JobStep, progress int, errorMsg string) error {
	if t.registry.Cancelled(id) && !status.IsTerminal() {
		return apperrors.Cancelled(id.String())
	}

	if snap, ok := t.registry.Snapshot(id); ok {
		if !domain.ValidTransition(snap.Status, status) {
			return apperrors.Conflict("job",
				fmt.Sprintf("cannot move job from %s to %s", snap.Status, status))
		}
		if from, to := domain.StageOrder(snap.Step), domain.StageOrder(step); from >= 0 && to >= 0 && to < from {
			return apperrors.Conflict("job",
				fmt.Sprintf("pipeline step cannot move back from %s to %s", snap.Step, step))
		}
	}

	errorMsg = redact.String(errorMsg)
	if err := t.jobs.UpdateJobStatus(ctx, id, status, step, progress, errorMsg); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return apperrors.NotFound("job", id.String())
		}
		if errors.Is(err, store.ErrJobTerminal) {
			return apperrors.Conflict("job", "job is already in a terminal state")
		}
		return apperrors.Storage("job.status", err)
	}

	t.registry.Put(id, Snapshot{
		Status:       status,
		Step:         step,
		Progress:     progress,
		ErrorMessage: errorMsg,
		UpdatedAt:    time.Now().UTC(),
	})
	return nil
}

// Read returns the job's current state. In-flight jobs are served from the
// cache when possible; terminal snapshots and cache misses always re-read
// the durable store, which is the source of truth for final states.
func (t *StatusTracker) Read(ctx context.Context, id uuid.UUID) (StatusView, error) {
	if snap, ok := t.registry.Snapshot(id); ok && !snap.Status.IsTerminal() {
		return StatusView{
			JobID:        id,
			Status:       snap.Status,
			Step:         snap.Step,
			Progress:     snap.Progress,
			ErrorMessage: snap.ErrorMessage,
			FromCache:    true,
		}, nil
	}

	job, err := t.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return StatusView{}, apperrors.NotFound("job", id.String())
		}
		return StatusView{}, apperrors.Storage("job.read", err)
	}

	if job.IsTerminal() {
		// A finished job has no business staying in the registry.
		t.registry.Evict(id)
	}

	return StatusView{
		JobID:        job.ID,
		Status:       job.Status,
		Step:         job.Step,
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		SpeakerCount: job.SpeakerCount,
	}, nil
}

// Results records the finalizing outputs on the durable job row.
func (t *StatusTracker) Results(ctx context.Context, id uuid.UUID, speakerCount int, outputDirectory string) error {
	if err := t.jobs.UpdateJobResults(ctx, id, speakerCount, outputDirectory); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return apperrors.NotFound("job", id.String())
		}
		return apperrors.Storage("job.results", err)
	}
	return nil
}

// ForceFail writes a terminal failed state regardless of the cancellation
// flag, used by cancel and the reaper. A job that reached a terminal state
// first keeps it: the store's guard refuses the write and the caller gets a
// conflict. Other store failures are logged and returned; the registry is
// updated only on success.
func (t *StatusTracker) ForceFail(ctx context.Context, id uuid.UUID, step domain.JobStep, errorMsg string) error {
	errorMsg = redact.String(errorMsg)
	if err := t.jobs.UpdateJobStatus(ctx, id, domain.JobStatusFailed, step, 0, errorMsg); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return apperrors.NotFound("job", id.String())
		}
		if errors.Is(err, store.ErrJobTerminal) {
			return apperrors.Conflict("job", "job is already in a terminal state")
		}
		logger.FromContext(ctx).Error("failed to force-fail job",
			"job_id", id,
			"step", step,
			"error", err)
		return apperrors.Storage("job.force_fail", err)
	}

	t.registry.Put(id, Snapshot{
		Status:       domain.JobStatusFailed,
		Step:         step,
		Progress:     0,
		ErrorMessage: errorMsg,
		UpdatedAt:    time.Now().UTC(),
	})
	t.registry.MarkDone(id)
	return nil
}
