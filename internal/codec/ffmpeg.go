package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

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

// FFmpeg is the production Codec backed by the ffmpeg binary.
type FFmpeg struct {
	binPath string
	runner  commandRunner
}

// NewFFmpeg constructs the production codec.
func NewFFmpeg(binPath string) *FFmpeg {
	return &FFmpeg{binPath: binPath, runner: &execRunner{}}
}

// buildDecodeArgs builds the conversion to 16 kHz mono PCM WAV. The pipeline
// standardizes on this format because the engine requires it.
func buildDecodeArgs(inputPath, formatHint, outPath string) []string {
	args := []string{"-y", "-nostdin", "-hide_banner"}
	if formatHint != "" {
		args = append(args, "-f", formatHint)
	}
	args = append(args,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	)
	return args
}

// buildRenderArgs builds a filter_complex that trims each span from the
// source, inserts a fixed silence between consecutive spans, and concatenates
// the lot into one stream.
func buildRenderArgs(wavPath string, spans []Span, gap time.Duration, outPath string) []string {
	var filter strings.Builder
	var inputs []string

	for i, span := range spans {
		fmt.Fprintf(&filter, "[0:a]atrim=start=%.3f:end=%.3f,asetpts=PTS-STARTPTS[s%d];",
			span.Start, span.End, i)
		inputs = append(inputs, fmt.Sprintf("[s%d]", i))
		if i < len(spans)-1 {
			fmt.Fprintf(&filter, "aevalsrc=0:d=%.3f:s=16000[g%d];", gap.Seconds(), i)
			inputs = append(inputs, fmt.Sprintf("[g%d]", i))
		}
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[out]", strings.Join(inputs, ""), len(inputs))

	return []string{
		"-y", "-nostdin", "-hide_banner",
		"-i", wavPath,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// Decode converts inputPath to the working WAV format at outPath.
func (f *FFmpeg) Decode(ctx context.Context, inputPath, formatHint, outPath string) error {
	args := buildDecodeArgs(inputPath, formatHint, outPath)
	result, err := f.runner.Run(ctx, f.binPath, args...)
	if err != nil {
		logger.FromContext(ctx).Warn("decode command failed",
			"exit_code", result.ExitCode,
			"format_hint", formatHint,
			"stderr", tail(result.Stderr, 512))
		if ctx.Err() != nil {
			return apperrors.Timeout("codec.decode", ctx.Err())
		}
		return apperrors.External("codec.decode", err)
	}
	return nil
}

// RenderTrack writes the concatenation of spans with silence gaps to outPath
// and returns its duration in seconds.
func (f *FFmpeg) RenderTrack(ctx context.Context, wavPath string, spans []Span, gap time.Duration, outPath string) (float64, error) {
	if len(spans) == 0 {
		return 0, apperrors.Validation("spans", "track requires at least one span")
	}

	args := buildRenderArgs(wavPath, spans, gap, outPath)
	result, err := f.runner.Run(ctx, f.binPath, args...)
	if err != nil {
		logger.FromContext(ctx).Warn("render command failed",
			"exit_code", result.ExitCode,
			"spans", len(spans),
			"stderr", tail(result.Stderr, 512))
		if ctx.Err() != nil {
			return 0, apperrors.Timeout("codec.render", ctx.Err())
		}
		return 0, apperrors.External("codec.render", err)
	}
	return TrackDuration(spans, gap), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
