package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"voxsplit/internal/api"
	"voxsplit/internal/codec"
	"voxsplit/internal/config"
	"voxsplit/internal/engine"
	"voxsplit/internal/events"
	"voxsplit/internal/intake"
	"voxsplit/internal/job"
	"voxsplit/internal/observability"
	"voxsplit/internal/platform/postgres"
)

// application bundles every long-lived component of the server. It is built
// once at startup and torn down by run when the process exits.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	metrics *observability.Metrics
	manager *job.Manager
	reaper  *job.Reaper
	handler *api.JobHandler
}

// newApplication wires the full dependency graph: database, stores, the
// pipeline executor with its external tools, the worker pool, the reaper,
// and the HTTP handler.
func newApplication(cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	for _, dir := range []string{cfg.Pipeline.UploadDir, cfg.Pipeline.TempDir, cfg.Pipeline.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	jobStore := postgres.NewPostgresJobStore(db)
	trackStore := postgres.NewTransactionalTrackStore(db)

	metrics := observability.NewMetrics()
	registry := job.NewRegistry()
	tracker := job.NewStatusTracker(jobStore, registry)

	executor := job.NewExecutor(tracker, registry, trackStore,
		codec.NewFFmpeg(cfg.Engine.FFmpegPath),
		engine.NewWhisperX(cfg.Engine.WhisperXPath, cfg.Engine.Model, cfg.Engine.Device),
		metrics,
		job.ExecutorConfig{
			AlignTimeout:   time.Duration(cfg.Pipeline.AlignTimeoutMinutes) * time.Minute,
			DiarizeTimeout: time.Duration(cfg.Pipeline.DiarizeTimeoutMinutes) * time.Minute,
			SilenceGap:     time.Duration(cfg.Pipeline.SilenceGapMs) * time.Millisecond,
			SpeakerGap:     cfg.Pipeline.SpeakerGapSeconds,
			TempDir:        cfg.Pipeline.TempDir,
			OutputDir:      cfg.Pipeline.OutputDir,
		})

	manager := job.NewManager(jobStore, tracker, registry, executor, metrics,
		job.ManagerConfig{
			WorkerCount: cfg.Pipeline.WorkerCount,
			QueueSize:   cfg.Pipeline.QueueSize,
		}, appLogger)

	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(events.NewLogHandler(appLogger))
	manager.SetEmitter(emitter)

	reaper := job.NewReaper(jobStore, tracker, registry, metrics,
		job.ReaperConfig{
			StaleAge:      time.Duration(cfg.Pipeline.StaleJobTimeoutMinutes) * time.Minute,
			CheckInterval: time.Duration(cfg.Pipeline.ReaperIntervalMinutes) * time.Minute,
		}, appLogger)

	service := job.NewService(manager, tracker, registry, jobStore, trackStore)
	uploads := intake.New(cfg.Pipeline.UploadDir, int64(cfg.Pipeline.MaxUploadSizeMB))

	return &application{
		config:  cfg,
		logger:  appLogger,
		db:      db,
		metrics: metrics,
		manager: manager,
		reaper:  reaper,
		handler: api.NewJobHandler(service, uploads),
	}, nil
}

// run starts the worker pool (which first recovers interrupted jobs), the
// reaper, and the HTTP server, then blocks until shutdown completes.
func (app *application) run() error {
	if err := app.manager.Start(); err != nil {
		return fmt.Errorf("failed to start job manager: %w", err)
	}
	app.reaper.Start()

	return app.startHTTPServer(app.buildRouter())
}

// cleanup stops the background components in dependency order.
func (app *application) cleanup() {
	app.reaper.Stop()
	app.manager.ShutdownAll(30 * time.Second)

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
}
