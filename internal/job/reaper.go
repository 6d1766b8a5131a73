package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/domain"
	"voxsplit/internal/observability"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// ReaperConfig holds the stale-job detection settings.
type ReaperConfig struct {
	// StaleAge is how long a job may sit in processing before it is
	// presumed dead.
	StaleAge time.Duration

	// CheckInterval is how often the reaper scans for stale jobs. If zero,
	// defaults to 5 minutes.
	CheckInterval time.Duration
}

// Reaper force-fails jobs whose worker died or hung: anything durably in
// processing with a StartedAt older than the stale age. Unlike normal stage
// failures these are written with a timeout message so operators can tell
// them apart in logs.
type Reaper struct {
	jobs     store.JobStore
	tracker  *StatusTracker
	registry *Registry
	metrics  *observability.Metrics

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     ReaperConfig
	logger     *slog.Logger
}

// NewReaper creates a stopped Reaper; call Start to begin scanning.
func NewReaper(jobs store.JobStore, tracker *StatusTracker, registry *Registry, metrics *observability.Metrics, config ReaperConfig, log *slog.Logger) *Reaper {
	if config.CheckInterval == 0 {
		config.CheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reaper{
		jobs:       jobs,
		tracker:    tracker,
		registry:   registry,
		metrics:    metrics,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
	}
}

// Start launches the scan loop.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop halts the scan loop and waits for an in-progress sweep to finish.
func (r *Reaper) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(logger.WithLogger(r.ctx, r.logger))
		}
	}
}

// Sweep runs one stale-job scan. Exported so tests and startup code can
// trigger it without waiting for the ticker.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.config.StaleAge)

	stale, err := r.jobs.ListProcessingOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to scan for stale jobs", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("found stale jobs", "count", len(stale))

	for _, j := range stale {
		msg := fmt.Sprintf("processing timed out after %s", r.config.StaleAge)
		if err := r.tracker.ForceFail(ctx, j.ID, domain.JobStepError, msg); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				// The job reached a terminal state between the scan and
				// this write. Nothing left to reap.
				r.logger.Info("stale job finished before reap", "job_id", j.ID)
				continue
			}
			r.logger.Error("failed to fail stale job",
				"job_id", j.ID,
				"error", err)
			continue
		}

		r.registry.Evict(j.ID)
		r.metrics.RecordStaleJobFailed()
		r.logger.Warn("stale job failed by reaper",
			"job_id", j.ID,
			"started_at", j.StartedAt,
			"stale_age", r.config.StaleAge)
	}
}
