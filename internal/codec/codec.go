// Package codec wraps audio decoding and per-speaker track rendering behind
// a narrow interface so the pipeline never touches ffmpeg directly.
package codec

import (
	"context"
	"time"
)

// Span is one time range of the source audio attributed to a speaker.
type Span struct {
	Start float64 // seconds
	End   float64
}

// Duration returns the span length in seconds. Malformed spans report zero.
func (s Span) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Codec converts uploaded media to the pipeline's working format and renders
// isolated per-speaker tracks from it.
type Codec interface {
	// Decode converts inputPath to 16 kHz mono PCM WAV at outPath. A non-empty
	// formatHint forces the container format instead of letting the decoder
	// sniff it; callers retry with the file extension as hint when sniffing
	// fails.
	Decode(ctx context.Context, inputPath, formatHint, outPath string) error

	// RenderTrack extracts the given spans from wavPath, joins them with a
	// silence gap between consecutive spans, and writes the result to
	// outPath. It returns the rendered duration in seconds.
	RenderTrack(ctx context.Context, wavPath string, spans []Span, gap time.Duration, outPath string) (float64, error)
}

// TrackDuration computes the duration of a rendered track: span lengths plus
// one gap between each pair of consecutive spans.
func TrackDuration(spans []Span, gap time.Duration) float64 {
	total := 0.0
	for _, s := range spans {
		total += s.Duration()
	}
	if len(spans) > 1 {
		total += gap.Seconds() * float64(len(spans)-1)
	}
	return total
}
