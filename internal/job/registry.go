// Package job orchestrates the processing pipeline: queueing, status
// tracking, cooperative cancellation, stage execution, and recovery of jobs
// abandoned by a crash or a hang.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/domain"
)

// Snapshot is the in-memory view of a job's progress. It exists so status
// polls during processing do not hit the durable store on every request.
type Snapshot struct {
	Status       domain.JobStatus
	Step         domain.JobStep
	Progress     int
	ErrorMessage string
	UpdatedAt    time.Time
}

// entry tracks one job known to this process.
type entry struct {
	snapshot  Snapshot
	cancelled bool
	running   bool
}

// Registry is the concurrency-safe in-process map of jobs this instance is
// working on. It carries the latest progress snapshot and the cancellation
// flag workers poll at stage boundaries. It is a cache, never the source of
// truth: the durable store wins on any disagreement.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*entry)}
}

// Put stores the latest snapshot for a job, creating the entry if needed.
// A job that was already flagged cancelled keeps its flag.
func (r *Registry) Put(id uuid.UUID, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	e.snapshot = snap
	e.running = !snap.Status.IsTerminal()
}

// Snapshot returns the cached view of a job, if this instance knows it.
func (r *Registry) Snapshot(id uuid.UUID) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot, true
}

// SetCancelled raises the cancellation flag for a job. It reports whether
// the job was known to this instance; cancelling an unknown job is a no-op.
func (r *Registry) SetCancelled(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.cancelled = true
	return true
}

// Cancelled reports whether a cancellation was requested for the job.
// Workers call this at stage boundaries only.
func (r *Registry) Cancelled(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return ok && e.cancelled
}

// MarkDone clears the running bit without evicting the entry, so a final
// terminal snapshot can still be served from cache briefly.
func (r *Registry) MarkDone(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.running = false
	}
}

// Evict removes a job from the registry.
func (r *Registry) Evict(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// ProcessingIDs returns the IDs of jobs currently marked running.
func (r *Registry) ProcessingIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.entries))
	for id, e := range r.entries {
		if e.running {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
