package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/codec"
	"voxsplit/internal/domain"
	"voxsplit/internal/engine"
	"voxsplit/internal/observability"
	"voxsplit/internal/platform/logger"
	"voxsplit/internal/store"
)

// Stage progress checkpoints. Fixed and strictly ascending so pollers see
// monotonic progress regardless of how long each stage really takes.
const (
	progressConvertStart    = 10
	progressConvertDone     = 25
	progressTranscribeStart = 30
	progressAligned         = 50
	progressTranscribeDone  = 58
	progressSeparateStart   = 60
	progressSeparateDone    = 85
	progressFinalizeStart   = 90
	progressComplete        = 100
)

// ExecutorConfig carries the per-stage budgets and filesystem layout.
type ExecutorConfig struct {
	AlignTimeout   time.Duration
	DiarizeTimeout time.Duration
	SilenceGap     time.Duration
	SpeakerGap     float64 // seconds of pause that flips the heuristic speaker
	TempDir        string
	OutputDir      string
}

// Executor runs the processing pipeline for one job at a time. Workers own
// an Executor call for the whole lifetime of a job; all status writes go
// through the tracker so the durable-first rule holds everywhere.
type Executor struct {
	tracker  *StatusTracker
	registry *Registry
	tracks   store.TrackStore
	codec    codec.Codec
	engine   engine.Transcriber
	metrics  *observability.Metrics
	cfg      ExecutorConfig
}

// NewExecutor wires an executor from its collaborators.
func NewExecutor(tracker *StatusTracker, registry *Registry, tracks store.TrackStore, cdc codec.Codec, eng engine.Transcriber, metrics *observability.Metrics, cfg ExecutorConfig) *Executor {
	return &Executor{
		tracker:  tracker,
		registry: registry,
		tracks:   tracks,
		codec:    cdc,
		engine:   eng,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Execute runs every stage for the job. It returns nil when the job reached
// completed, a cancellation error when it stopped at a stage boundary, and
// the stage error otherwise. In every non-nil case the terminal state has
// already been written; callers never need to re-fail the job.
func (e *Executor) Execute(ctx context.Context, j *domain.Job) error {
	log := logger.FromContext(ctx).With("job_id", j.ID)
	ctx = logger.WithLogger(ctx, log)

	wavPath, err := e.convert(ctx, j)
	if err != nil {
		return e.finish(ctx, j, domain.JobStepConverting, err)
	}
	defer func() { _ = os.Remove(wavPath) }()

	transcript, err := e.transcribe(ctx, j, wavPath)
	if err != nil {
		return e.finish(ctx, j, domain.JobStepTranscribing, err)
	}

	tracks, outputDir, err := e.separate(ctx, j, wavPath, transcript)
	if err != nil {
		return e.finish(ctx, j, domain.JobStepSeparating, err)
	}

	if err := e.finalize(ctx, j, tracks, outputDir); err != nil {
		return e.finish(ctx, j, domain.JobStepFinalizing, err)
	}

	log.Info("job completed",
		"speakers", len(tracks),
		"source", transcript.Source)
	return nil
}

// finish maps a stage error to the job's terminal state. Cancellations were
// already written by Cancel, and a conflict means another writer (the reaper
// or a cancel race) recorded the verdict first; everything else becomes
// failed/error with a bounded message.
func (e *Executor) finish(ctx context.Context, j *domain.Job, step domain.JobStep, err error) error {
	if errors.Is(err, apperrors.ErrCancelled) {
		logger.FromContext(ctx).Info("job cancelled", "step", step)
		return err
	}
	if errors.Is(err, apperrors.ErrConflict) {
		logger.FromContext(ctx).Warn("job already terminal, keeping recorded verdict", "step", step)
		return err
	}

	msg := domain.TruncateErrorMessage(fmt.Sprintf("%s failed: %v", step, err))
	logger.FromContext(ctx).Error("job failed", "step", step, "error", err)
	if ffErr := e.tracker.ForceFail(ctx, j.ID, domain.JobStepError, msg); ffErr != nil {
		logger.FromContext(ctx).Error("failed to record job failure", "error", ffErr)
	}
	return err
}

// checkCancelled is the stage-boundary cancellation gate. The terminal write
// already happened in Cancel, so the executor only has to stop.
func (e *Executor) checkCancelled(j *domain.Job) error {
	if e.registry.Cancelled(j.ID) {
		return apperrors.Cancelled(j.ID.String())
	}
	return nil
}

func (e *Executor) convert(ctx context.Context, j *domain.Job) (string, error) {
	if err := e.checkCancelled(j); err != nil {
		return "", err
	}
	start := time.Now()
	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, progressConvertStart, ""); err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.cfg.TempDir, 0o755); err != nil {
		return "", apperrors.Internal("executor.convert", err)
	}
	wavPath := filepath.Join(e.cfg.TempDir, j.ID.String()+".wav")

	err := e.codec.Decode(ctx, j.UploadedFilePath, "", wavPath)
	if err != nil {
		// Some uploads carry a container ffmpeg cannot sniff; retry once
		// forcing the format from the original file extension.
		hint := strings.TrimPrefix(strings.ToLower(filepath.Ext(j.OriginalFilename)), ".")
		if hint != "" {
			logger.FromContext(ctx).Warn("decode failed, retrying with format hint",
				"hint", hint, "error", err)
			err = e.codec.Decode(ctx, j.UploadedFilePath, hint, wavPath)
		}
	}
	if err != nil {
		return "", err
	}

	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepConverting, progressConvertDone, ""); err != nil {
		return "", err
	}
	e.metrics.RecordStageDuration(string(domain.JobStepConverting), time.Since(start).Seconds())
	return wavPath, nil
}

func (e *Executor) transcribe(ctx context.Context, j *domain.Job, wavPath string) (*engine.Transcript, error) {
	if err := e.checkCancelled(j); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepTranscribing, progressTranscribeStart, ""); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	alignCtx, cancel := context.WithTimeout(ctx, e.cfg.AlignTimeout)
	transcript, err := e.engine.Transcribe(alignCtx, wavPath)
	cancel()
	if err != nil {
		// The job still completes: substitute the canned transcript, which
		// already carries speaker identities.
		log.Warn("transcription failed, substituting fallback transcript", "error", err)
		transcript = engine.Fallback()
	} else {
		if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepTranscribing, progressAligned, ""); err != nil {
			return nil, err
		}

		diarizeCtx, cancel := context.WithTimeout(ctx, e.cfg.DiarizeTimeout)
		diarized, derr := e.engine.Diarize(diarizeCtx, wavPath, transcript)
		cancel()
		if derr != nil {
			log.Warn("diarization failed, assigning speakers by pause gaps", "error", derr)
			transcript = engine.AssignSpeakersByGaps(transcript, e.cfg.SpeakerGap)
		} else {
			// A diarizer may leave individual segments unattributed.
			diarized.FillMissingSpeakers()
			transcript = diarized
		}
	}

	if len(transcript.Segments) == 0 {
		return nil, apperrors.External("engine.transcribe",
			errors.New("engine returned no segments"))
	}

	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepTranscribing, progressTranscribeDone, ""); err != nil {
		return nil, err
	}
	e.metrics.RecordStageDuration(string(domain.JobStepTranscribing), time.Since(start).Seconds())
	return transcript, nil
}

func (e *Executor) separate(ctx context.Context, j *domain.Job, wavPath string, transcript *engine.Transcript) ([]*domain.SpeakerTrack, string, error) {
	if err := e.checkCancelled(j); err != nil {
		return nil, "", err
	}
	start := time.Now()
	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepSeparating, progressSeparateStart, ""); err != nil {
		return nil, "", err
	}

	speakers := transcript.Speakers()
	spansBySpeaker := partitionSpans(transcript)

	outputDir := filepath.Join(e.cfg.OutputDir, j.ID.String())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, "", apperrors.Internal("executor.separate", err)
	}

	tracks := make([]*domain.SpeakerTrack, len(speakers))
	g, gctx := errgroup.WithContext(ctx)
	for i, speaker := range speakers {
		g.Go(func() error {
			spans := spansBySpeaker[speaker]
			outPath := filepath.Join(outputDir, speaker+".wav")

			duration, err := e.codec.RenderTrack(gctx, wavPath, spans, e.cfg.SilenceGap, outPath)
			if err != nil {
				return fmt.Errorf("render track for %s: %w", speaker, err)
			}

			track, err := domain.NewSpeakerTrack(j.ID, speaker, outPath, duration, transcript.WordCount(speaker))
			if err != nil {
				return err
			}
			tracks[i] = track
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepSeparating, progressSeparateDone, ""); err != nil {
		return nil, "", err
	}
	e.metrics.RecordStageDuration(string(domain.JobStepSeparating), time.Since(start).Seconds())
	return tracks, outputDir, nil
}

func (e *Executor) finalize(ctx context.Context, j *domain.Job, tracks []*domain.SpeakerTrack, outputDir string) error {
	if err := e.checkCancelled(j); err != nil {
		return err
	}
	start := time.Now()
	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusProcessing, domain.JobStepFinalizing, progressFinalizeStart, ""); err != nil {
		return err
	}

	if err := e.tracks.CreateTracks(ctx, tracks); err != nil {
		return apperrors.Storage("tracks.create", err)
	}
	if err := e.tracker.Results(ctx, j.ID, len(tracks), outputDir); err != nil {
		return err
	}

	if err := e.tracker.Write(ctx, j.ID, domain.JobStatusCompleted, domain.JobStepCompleted, progressComplete, ""); err != nil {
		return err
	}
	e.metrics.RecordStageDuration(string(domain.JobStepFinalizing), time.Since(start).Seconds())
	return nil
}

// partitionSpans groups segment time ranges by speaker, preserving segment
// order within each speaker.
func partitionSpans(transcript *engine.Transcript) map[string][]codec.Span {
	spans := make(map[string][]codec.Span)
	for _, seg := range transcript.Segments {
		spans[seg.Speaker] = append(spans[seg.Speaker], codec.Span{Start: seg.Start, End: seg.End})
	}
	return spans
}
