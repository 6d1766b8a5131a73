package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/domain"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// Service is the facade the web layer talks to. It owns no state of its own;
// every operation delegates to the manager, the tracker, or the stores.
type Service struct {
	manager  *Manager
	tracker  *StatusTracker
	registry *Registry
	jobs     store.JobStore
	tracks   store.TrackStore
}

// NewService wires the facade.
func NewService(manager *Manager, tracker *StatusTracker, registry *Registry, jobs store.JobStore, tracks store.TrackStore) *Service {
	return &Service{
		manager:  manager,
		tracker:  tracker,
		registry: registry,
		jobs:     jobs,
		tracks:   tracks,
	}
}

// Submit creates a job for a stored upload and queues it for processing.
func (s *Service) Submit(ctx context.Context, originalFilename, storedPath string, fileSize int64) (*domain.Job, error) {
	j, err := domain.NewJob(originalFilename, storedPath, fileSize)
	if err != nil {
		return nil, apperrors.Validation("file", err.Error())
	}

	if err := s.manager.Submit(ctx, j); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("job submitted",
		"job_id", j.ID,
		"filename", originalFilename,
		"size", fileSize)
	return j, nil
}

// GetStatus returns the current state of a job: cached while in flight,
// durable once terminal.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (StatusView, error) {
	return s.tracker.Read(ctx, id)
}

// Cancel requests cancellation of a running or queued job.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.manager.Cancel(ctx, id)
}

// Retry requeues a failed job from the start of the pipeline. Only failed
// jobs are retryable; the stored upload is reused as-is.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) error {
	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return apperrors.NotFound("job", id.String())
		}
		return apperrors.Storage("job.read", err)
	}
	if j.Status != domain.JobStatusFailed {
		return apperrors.Conflict("job",
			fmt.Sprintf("only failed jobs can be retried, job is %s", j.Status))
	}

	// Drop any stale cancellation flag from the failed attempt.
	s.registry.Evict(id)

	if err := s.jobs.ResetJobForRetry(ctx, id); err != nil {
		if errors.Is(err, store.ErrUpdateFailed) {
			// Lost a race with another retry or a concurrent state change.
			return apperrors.Conflict("job", "job is no longer retryable")
		}
		return apperrors.Storage("job.retry", err)
	}

	j.Status = domain.JobStatusPending
	j.Step = domain.JobStepUploaded
	j.Progress = 0
	j.ErrorMessage = ""

	if err := s.manager.Requeue(j); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("job retried", "job_id", id)
	return nil
}

// Tracks lists the rendered speaker tracks of a job.
func (s *Service) Tracks(ctx context.Context, id uuid.UUID) ([]*domain.SpeakerTrack, error) {
	if _, err := s.jobs.GetJob(ctx, id); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, apperrors.NotFound("job", id.String())
		}
		return nil, apperrors.Storage("job.read", err)
	}
	tracks, err := s.tracks.GetTracks(ctx, id)
	if err != nil {
		return nil, apperrors.Storage("tracks.read", err)
	}
	return tracks, nil
}

// UpdateSpeakerLabel renames a speaker track of a completed job.
func (s *Service) UpdateSpeakerLabel(ctx context.Context, id uuid.UUID, speakerID, label string) error {
	if err := domain.ValidateSpeakerLabel(label); err != nil {
		return apperrors.Validation("label", err.Error())
	}

	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return apperrors.NotFound("job", id.String())
		}
		return apperrors.Storage("job.read", err)
	}
	if j.Status != domain.JobStatusCompleted {
		return apperrors.Conflict("job",
			fmt.Sprintf("labels can only be edited on completed jobs, job is %s", j.Status))
	}

	if err := s.tracks.UpdateTrackLabel(ctx, id, speakerID, label); err != nil {
		if errors.Is(err, store.ErrTrackNotFound) {
			return apperrors.NotFound("track", speakerID)
		}
		return apperrors.Storage("track.label", err)
	}
	return nil
}
