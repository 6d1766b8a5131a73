// Package mocks provides in-memory store implementations for tests.
package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
	"voxsplit/internal/store"
)

// StatusWrite records one UpdateJobStatus call for order assertions.
type StatusWrite struct {
	Status   domain.JobStatus
	Step     domain.JobStep
	Progress int
	ErrorMsg string
}

// JobStore is an in-memory store.JobStore.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*domain.Job
	writes map[uuid.UUID][]StatusWrite

	failWith error // when set, every mutating call fails with this error
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:   make(map[uuid.UUID]*domain.Job),
		writes: make(map[uuid.UUID][]StatusWrite),
	}
}

// CreateJob implements store.JobStore.
func (m *JobStore) CreateJob(_ context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if err := j.Validate(); err != nil {
		return store.ErrInvalidEntity
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

// GetJob implements store.JobStore.
func (m *JobStore) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJobStatus implements store.JobStore with the same timestamp and
// terminal-guard rules as the postgres implementation.
func (m *JobStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status domain.JobStatus, step domain.JobStep, progress int, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if j.Status.IsTerminal() {
		return store.ErrJobTerminal
	}

	now := time.Now().UTC()
	if status == domain.JobStatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.IsTerminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	j.Status = status
	j.Step = step
	j.Progress = progress
	j.ErrorMessage = domain.TruncateErrorMessage(errorMsg)

	m.writes[id] = append(m.writes[id], StatusWrite{status, step, progress, errorMsg})
	return nil
}

// UpdateJobResults implements store.JobStore.
func (m *JobStore) UpdateJobResults(_ context.Context, id uuid.UUID, speakerCount int, outputDirectory string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	j.SpeakerCount = speakerCount
	j.OutputDirectory = outputDirectory
	return nil
}

// ResetJobForRetry implements store.JobStore.
func (m *JobStore) ResetJobForRetry(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobStatusFailed {
		return store.ErrUpdateFailed
	}
	j.Status = domain.JobStatusPending
	j.Step = domain.JobStepUploaded
	j.Progress = 0
	j.ErrorMessage = ""
	j.SpeakerCount = 0
	j.OutputDirectory = ""
	j.StartedAt = nil
	j.CompletedAt = nil
	return nil
}

// ResetJobForRecovery implements store.JobStore.
func (m *JobStore) ResetJobForRecovery(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != domain.JobStatusProcessing {
		return store.ErrUpdateFailed
	}
	j.Status = domain.JobStatusPending
	j.Step = domain.JobStepUploaded
	j.Progress = 0
	j.ErrorMessage = ""
	j.StartedAt = nil
	j.CompletedAt = nil
	return nil
}

// ListPendingJobs implements store.JobStore.
func (m *JobStore) ListPendingJobs(_ context.Context) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if j.Status == domain.JobStatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListProcessingOlderThan implements store.JobStore.
func (m *JobStore) ListProcessingOlderThan(_ context.Context, cutoff time.Time) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if j.Status == domain.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// WithTx implements store.JobStore; transactions are a no-op in memory.
func (m *JobStore) WithTx(*sql.Tx) store.JobStore { return m }

// WritesFor returns the recorded status writes for a job.
func (m *JobStore) WritesFor(id uuid.UUID) []StatusWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusWrite, len(m.writes[id]))
	copy(out, m.writes[id])
	return out
}

// SetFailure makes subsequent mutating calls fail with err; nil clears it.
func (m *JobStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetStartedAt backdates a job's StartedAt, for stale-job tests.
func (m *JobStore) SetStartedAt(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.StartedAt = &at
	}
}

// TrackStore is an in-memory store.TrackStore.
type TrackStore struct {
	mu     sync.Mutex
	tracks map[uuid.UUID][]*domain.SpeakerTrack

	failWith error
}

// NewTrackStore creates an empty in-memory track store.
func NewTrackStore() *TrackStore {
	return &TrackStore{tracks: make(map[uuid.UUID][]*domain.SpeakerTrack)}
}

// CreateTracks implements store.TrackStore.
func (m *TrackStore) CreateTracks(_ context.Context, tracks []*domain.SpeakerTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, t := range tracks {
		cp := *t
		m.tracks[t.JobID] = append(m.tracks[t.JobID], &cp)
	}
	return nil
}

// GetTracks implements store.TrackStore.
func (m *TrackStore) GetTracks(_ context.Context, jobID uuid.UUID) ([]*domain.SpeakerTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.SpeakerTrack, 0, len(m.tracks[jobID]))
	for _, t := range m.tracks[jobID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// GetTrack implements store.TrackStore.
func (m *TrackStore) GetTrack(_ context.Context, jobID uuid.UUID, speakerID string) (*domain.SpeakerTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks[jobID] {
		if t.SpeakerID == speakerID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTrackNotFound
}

// UpdateTrackLabel implements store.TrackStore.
func (m *TrackStore) UpdateTrackLabel(_ context.Context, jobID uuid.UUID, speakerID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks[jobID] {
		if t.SpeakerID == speakerID {
			t.Label = label
			return nil
		}
	}
	return store.ErrTrackNotFound
}

// WithTx implements store.TrackStore; transactions are a no-op in memory.
func (m *TrackStore) WithTx(*sql.Tx) store.TrackStore { return m }

// SetFailure makes subsequent CreateTracks calls fail with err.
func (m *TrackStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}
