package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
)

// JobStore defines the interface for job data persistence.
type JobStore interface {
	// CreateJob saves a new job to the store.
	// Returns ErrInvalidEntity if the job fails domain validation checks.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateJobStatus updates a job's status, step, progress and message.
	// StartedAt is set once on the first transition into processing and
	// CompletedAt once on entering a terminal state; the error message is
	// bounded to domain.MaxErrorMessageLen. Writes against a row that is
	// already completed or failed are refused with ErrJobTerminal, so a
	// slow worker cannot overwrite a verdict the reaper or cancel already
	// recorded. Returns ErrJobNotFound if the job does not exist.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, step domain.JobStep, progress int, errorMsg string) error

	// UpdateJobResults records the finalizing outputs: speaker count and
	// output directory. Returns ErrJobNotFound if the job does not exist.
	UpdateJobResults(ctx context.Context, id uuid.UUID, speakerCount int, outputDirectory string) error

	// ResetJobForRetry moves a failed job back to pending with cleared
	// progress, message, timestamps and results. Returns ErrUpdateFailed if
	// the job is not currently failed.
	ResetJobForRetry(ctx context.Context, id uuid.UUID) error

	// ResetJobForRecovery moves an interrupted processing job back to
	// pending with cleared progress and timestamps, so the rerun starts a
	// fresh staleness clock. Returns ErrUpdateFailed if the job is not
	// currently processing.
	ResetJobForRecovery(ctx context.Context, id uuid.UUID) error

	// ListPendingJobs returns jobs whose durable status is pending, oldest
	// first. Used to requeue work after a restart.
	ListPendingJobs(ctx context.Context) ([]*domain.Job, error)

	// ListProcessingOlderThan returns jobs whose durable status is processing
	// and whose StartedAt precedes the cutoff. Used by the stale job reaper,
	// and with a cutoff of now by startup recovery.
	ListProcessingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Job, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}

// TrackStore defines the interface for speaker track persistence.
type TrackStore interface {
	// CreateTracks writes all tracks of one job as a single atomic batch.
	// Either every track is persisted or none is.
	CreateTracks(ctx context.Context, tracks []*domain.SpeakerTrack) error

	// GetTracks returns all tracks for a job ordered by speaker ID.
	GetTracks(ctx context.Context, jobID uuid.UUID) ([]*domain.SpeakerTrack, error)

	// GetTrack retrieves one track by its (job, speaker) pair.
	// Returns ErrTrackNotFound if the track does not exist.
	GetTrack(ctx context.Context, jobID uuid.UUID, speakerID string) (*domain.SpeakerTrack, error)

	// UpdateTrackLabel sets the user-editable display label of a track.
	// Returns ErrTrackNotFound if the track does not exist.
	UpdateTrackLabel(ctx context.Context, jobID uuid.UUID, speakerID, label string) error

	// WithTx returns a new TrackStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TrackStore
}
