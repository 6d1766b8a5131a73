package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/domain"
	"voxsplit/internal/events"
	"voxsplit/internal/observability"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// ManagerConfig holds configuration for the job manager.
type ManagerConfig struct {
	// WorkerCount determines how many jobs process concurrently.
	WorkerCount int

	// QueueSize bounds the in-memory queue of accepted jobs waiting for a
	// worker. Submissions beyond it are rejected.
	QueueSize int
}

// DefaultManagerConfig returns a ManagerConfig with reasonable defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// pipeline is what the manager hands each dequeued job to. Satisfied by
// *Executor in production.
type pipeline interface {
	Execute(ctx context.Context, j *domain.Job) error
}

// Manager owns the worker pool and the accepted-job queue. It is the only
// component that moves jobs between queued and running.
type Manager struct {
	jobs     store.JobStore
	tracker  *StatusTracker
	registry *Registry
	executor pipeline
	metrics  *observability.Metrics
	emitter  events.Emitter

	queue      chan *domain.Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     ManagerConfig
	logger     *slog.Logger

	mu        sync.Mutex
	shutdown  bool
	queueOpen bool
}

// NewManager creates a stopped Manager; call Start to begin processing.
func NewManager(jobs store.JobStore, tracker *StatusTracker, registry *Registry, executor pipeline, metrics *observability.Metrics, config ManagerConfig, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		jobs:       jobs,
		tracker:    tracker,
		registry:   registry,
		executor:   executor,
		metrics:    metrics,
		queue:      make(chan *domain.Job, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		queueOpen:  true,
	}
}

// SetEmitter attaches a lifecycle event emitter. Call before Start; without
// one the manager emits nothing.
func (m *Manager) SetEmitter(e events.Emitter) {
	m.emitter = e
}

// emit publishes a lifecycle event when an emitter is attached. Handler
// errors are logged by the emitter and never affect the pipeline.
func (m *Manager) emit(ctx context.Context, jobID uuid.UUID, eventType events.JobEventType, detail string) {
	if m.emitter == nil {
		return
	}
	_ = m.emitter.EmitEvent(ctx, events.NewJobEvent(jobID, eventType, detail))
}

// Submit accepts a job: durable row first, then the in-memory queue. When
// the queue is full the row stays pending and is requeued by the next
// recovery pass; the caller gets a conflict error so it can retry later.
func (m *Manager) Submit(ctx context.Context, j *domain.Job) error {
	if err := m.jobs.CreateJob(ctx, j); err != nil {
		return apperrors.Storage("job.create", err)
	}

	m.registry.Put(j.ID, Snapshot{
		Status:    j.Status,
		Step:      j.Step,
		Progress:  j.Progress,
		UpdatedAt: time.Now().UTC(),
	})

	if err := m.enqueue(j); err != nil {
		m.registry.Evict(j.ID)
		return err
	}

	m.metrics.RecordJobSubmitted()
	m.metrics.SetQueueDepth(len(m.queue))
	m.emit(ctx, j.ID, events.JobSubmitted, j.OriginalFilename)
	return nil
}

func (m *Manager) enqueue(j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown || !m.queueOpen {
		return apperrors.Conflict("job", "service is shutting down")
	}

	select {
	case m.queue <- j:
		return nil
	default:
		return apperrors.Conflict("job", "processing queue is full, try again later")
	}
}

// Start recovers unfinished jobs from the durable store and launches the
// worker pool.
func (m *Manager) Start() error {
	if err := m.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < m.config.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	m.logger.Info("job manager started",
		"workers", m.config.WorkerCount,
		"queue_size", m.config.QueueSize)
	return nil
}

// Recover requeues jobs a previous run left behind: pending jobs go straight
// back on the queue, jobs stuck in processing are reset to pending first.
func (m *Manager) Recover() error {
	ctx := logger.WithLogger(context.Background(), m.logger)

	pending, err := m.jobs.ListPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	interrupted, err := m.jobs.ListProcessingOlderThan(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list interrupted jobs: %w", err)
	}

	m.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"interrupted_count", len(interrupted))

	for _, j := range pending {
		m.requeue(j)
	}

	for _, j := range interrupted {
		// The recovery reset clears StartedAt so the rerun gets a fresh
		// staleness clock instead of inheriting the dead run's age.
		if err := m.jobs.ResetJobForRecovery(ctx, j.ID); err != nil {
			m.logger.Error("failed to reset interrupted job",
				"job_id", j.ID,
				"error", err)
			continue
		}
		j.Status = domain.JobStatusPending
		j.Step = domain.JobStepUploaded
		j.Progress = 0
		j.StartedAt = nil
		m.requeue(j)
	}

	return nil
}

func (m *Manager) requeue(j *domain.Job) {
	if err := m.Requeue(j); err != nil {
		m.logger.Error("failed to requeue job, queue is full", "job_id", j.ID)
	}
}

// Requeue puts an already-persisted pending job back on the queue. Used by
// recovery and by retry, which reset the durable row before calling.
func (m *Manager) Requeue(j *domain.Job) error {
	m.registry.Put(j.ID, Snapshot{
		Status:    j.Status,
		Step:      j.Step,
		Progress:  j.Progress,
		UpdatedAt: time.Now().UTC(),
	})
	if err := m.enqueue(j); err != nil {
		m.registry.Evict(j.ID)
		return err
	}
	m.emit(context.Background(), j.ID, events.JobRequeued, "")
	return nil
}

// Cancel requests cancellation of a job and immediately writes the terminal
// state, so pollers see failed/cancelled without waiting for the worker to
// reach its next stage boundary. Terminal jobs cannot be cancelled.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	view, err := m.tracker.Read(ctx, id)
	if err != nil {
		return err
	}
	if view.Status.IsTerminal() {
		return apperrors.Conflict("job",
			fmt.Sprintf("job is already %s", view.Status))
	}

	m.registry.SetCancelled(id)

	if err := m.tracker.ForceFail(ctx, id, domain.JobStepCancelled, "cancelled by user"); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("job cancelled", "job_id", id)
	m.emit(ctx, id, events.JobCancelled, "cancelled by user")
	return nil
}

// ShutdownAll flags every running job as cancelled, stops the workers, and
// waits up to timeout for them to drain. After it returns no new submissions
// are accepted.
func (m *Manager) ShutdownAll(timeout time.Duration) {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()

	for _, id := range m.registry.ProcessingIDs() {
		m.registry.SetCancelled(id)
	}
	m.cancelFunc()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.mu.Lock()
		m.queueOpen = false
		close(m.queue)
		m.mu.Unlock()
		m.logger.Info("job manager stopped")
	case <-time.After(timeout):
		m.logger.Warn("job manager shutdown timed out; workers abandoned",
			"timeout", timeout)
	}
}

// worker processes jobs from the queue until shutdown.
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	m.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Debug("stopping worker", "worker_id", id)
			return

		case j, ok := <-m.queue:
			if !ok {
				m.logger.Debug("job queue closed, stopping worker", "worker_id", id)
				return
			}
			m.processJob(j, id)
		}
	}
}

// processJob runs one job through the executor and records the outcome.
func (m *Manager) processJob(j *domain.Job, workerID int) {
	log := m.logger.With("job_id", j.ID, "worker_id", workerID)
	ctx := logger.WithLogger(m.ctx, log)

	m.metrics.RecordJobStarted()
	m.metrics.SetQueueDepth(len(m.queue))
	log.Info("processing job", "filename", j.OriginalFilename)
	m.emit(ctx, j.ID, events.JobStarted, "")

	err := m.executor.Execute(ctx, j)
	switch {
	case err == nil:
		m.metrics.RecordJobCompleted()
		m.emit(ctx, j.ID, events.JobCompleted, "")
	case errors.Is(err, apperrors.ErrCancelled):
		m.metrics.RecordJobFailed(observability.ReasonCancelled)
		m.emit(ctx, j.ID, events.JobCancelled, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		// Another writer, the reaper or a cancel race, already recorded
		// the terminal verdict and its metrics.
		log.Warn("job finished after its terminal state was recorded elsewhere")
	case errors.Is(err, apperrors.ErrTimeout):
		m.metrics.RecordJobFailed(observability.ReasonTimeout)
		m.emit(ctx, j.ID, events.JobFailed, err.Error())
	default:
		m.metrics.RecordJobFailed(observability.ReasonError)
		m.emit(ctx, j.ID, events.JobFailed, err.Error())
	}

	// Terminal state is durable; the cache entry has nothing left to add.
	m.registry.Evict(j.ID)
}
