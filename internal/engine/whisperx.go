package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/platform/logger"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// WhisperX drives the whisperx command-line tool. It satisfies Transcriber.
type WhisperX struct {
	binPath string
	model   string
	device  string

	runner    commandRunner
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	readFile  func(name string) ([]byte, error)
}

// NewWhisperX constructs the production engine with OS dependencies.
func NewWhisperX(binPath, model, device string) *WhisperX {
	return &WhisperX{
		binPath:   binPath,
		model:     model,
		device:    device,
		runner:    &execRunner{},
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		readFile:  os.ReadFile,
	}
}

// whisperxOutput mirrors the JSON document whisperx writes next to the input.
type whisperxOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

func buildWhisperXArgs(wavPath, model, device, outputDir string, diarize bool) []string {
	args := []string{
		wavPath,
		"--model", model,
		"--device", device,
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if device == "cpu" {
		args = append(args, "--compute_type", "int8")
	}
	if diarize {
		args = append(args, "--diarize")
	}
	return args
}

// Transcribe runs whisperx without diarization and parses the aligned
// segment JSON it writes.
func (w *WhisperX) Transcribe(ctx context.Context, wavPath string) (*Transcript, error) {
	return w.run(ctx, wavPath, false)
}

// Diarize re-runs whisperx with speaker diarization enabled. The input
// transcript is ignored because the tool recomputes segments with speaker
// identities attached.
func (w *WhisperX) Diarize(ctx context.Context, wavPath string, _ *Transcript) (*Transcript, error) {
	return w.run(ctx, wavPath, true)
}

func (w *WhisperX) run(ctx context.Context, wavPath string, diarize bool) (*Transcript, error) {
	log := logger.FromContext(ctx)

	outputDir, err := w.mkdirTemp("", "voxsplit-engine-*")
	if err != nil {
		return nil, apperrors.Internal("engine.workspace", err)
	}
	defer func() { _ = w.removeAll(outputDir) }()

	args := buildWhisperXArgs(wavPath, w.model, w.device, outputDir, diarize)
	result, runErr := w.runner.Run(ctx, w.binPath, args...)
	if runErr != nil {
		log.Warn("engine command failed",
			"bin", w.binPath,
			"exit_code", result.ExitCode,
			"diarize", diarize,
			"stderr", tail(result.Stderr, 512))
		if ctx.Err() != nil {
			return nil, apperrors.Timeout(engineOp(diarize), ctx.Err())
		}
		return nil, apperrors.External(engineOp(diarize), runErr)
	}

	jsonPath := filepath.Join(outputDir, transcriptJSONName(wavPath))
	raw, err := w.readFile(jsonPath)
	if err != nil {
		return nil, apperrors.External(engineOp(diarize),
			fmt.Errorf("engine completed but output file is missing: %w", err))
	}

	var out whisperxOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.External(engineOp(diarize),
			fmt.Errorf("malformed engine output: %w", err))
	}

	transcript := &Transcript{
		Language: out.Language,
		Source:   SourceEngine,
		Segments: make([]Segment, 0, len(out.Segments)),
	}
	for _, seg := range out.Segments {
		transcript.Segments = append(transcript.Segments, Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    strings.TrimSpace(seg.Text),
			Speaker: seg.Speaker,
		})
	}
	return transcript, nil
}

func engineOp(diarize bool) string {
	if diarize {
		return "engine.diarize"
	}
	return "engine.transcribe"
}

// transcriptJSONName returns the JSON file name whisperx derives from the
// input audio file name.
func transcriptJSONName(wavPath string) string {
	base := filepath.Base(wavPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
