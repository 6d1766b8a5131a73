// Package engine defines the transcription and diarization collaborator:
// given a normalized audio file it returns timestamped text segments, each
// tagged with a speaker identity.
package engine

import (
	"context"
	"strings"
)

// ResultSource tells a genuine engine result apart from the deterministic
// fallback in logs and telemetry.
type ResultSource string

const (
	// SourceEngine marks a transcript produced by the real engine.
	SourceEngine ResultSource = "engine"

	// SourceFallback marks the deterministic substitute transcript used when
	// the engine is unavailable or fails irrecoverably.
	SourceFallback ResultSource = "fallback"

	// SourceHeuristic marks a transcript whose speaker identities were
	// assigned by the gap heuristic after a diarization failure.
	SourceHeuristic ResultSource = "heuristic"
)

// Segment is one timestamped span of transcribed speech.
type Segment struct {
	Start   float64 `json:"start"` // seconds from beginning of audio
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"` // e.g. "SPEAKER_00"; empty before diarization
}

// Transcript is the full engine output for one audio file.
type Transcript struct {
	Language string       `json:"language"`
	Segments []Segment    `json:"segments"`
	Source   ResultSource `json:"source"`
}

// Speakers returns the distinct speaker identities in segment order.
func (t *Transcript) Speakers() []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, seg := range t.Segments {
		if seg.Speaker == "" || seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		speakers = append(speakers, seg.Speaker)
	}
	return speakers
}

// FillMissingSpeakers tags every segment the diarizer left unattributed with
// the first canonical speaker identity, so no span is orphaned when tracks
// are partitioned by speaker.
func (t *Transcript) FillMissingSpeakers() {
	for i := range t.Segments {
		if t.Segments[i].Speaker == "" {
			t.Segments[i].Speaker = speakerID(0)
		}
	}
}

// WordCount returns the whitespace-token count of the concatenated text of
// all segments belonging to the given speaker.
func (t *Transcript) WordCount(speaker string) int {
	count := 0
	for _, seg := range t.Segments {
		if seg.Speaker != speaker {
			continue
		}
		count += len(strings.Fields(seg.Text))
	}
	return count
}

// Transcriber is the narrow interface the pipeline uses to reach the
// transcription and diarization engine. Both calls honor context deadlines;
// the caller applies independent budgets to each sub-phase.
type Transcriber interface {
	// Transcribe produces aligned, timestamped segments without speaker
	// identities.
	Transcribe(ctx context.Context, wavPath string) (*Transcript, error)

	// Diarize assigns a speaker identity to every segment of the transcript.
	// It returns a new transcript and leaves the input untouched.
	Diarize(ctx context.Context, wavPath string, transcript *Transcript) (*Transcript, error)
}
