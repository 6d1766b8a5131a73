package engine

import "fmt"

// speakerID formats the zero-based speaker index in the canonical
// "SPEAKER_NN" form used throughout the pipeline.
func speakerID(n int) string {
	return fmt.Sprintf("SPEAKER_%02d", n)
}

// Fallback returns the deterministic two-speaker transcript substituted when
// the engine cannot produce a genuine result. The content is fixed so that
// downstream stages always have something to separate and the job can still
// complete.
func Fallback() *Transcript {
	return &Transcript{
		Language: "en",
		Source:   SourceFallback,
		Segments: []Segment{
			{Start: 0.0, End: 3.0, Text: "Hello, welcome to our podcast.", Speaker: speakerID(0)},
			{Start: 3.5, End: 7.0, Text: "Thank you for having me. It's great to be here.", Speaker: speakerID(1)},
			{Start: 7.5, End: 12.0, Text: "Today we're going to talk about some interesting topics.", Speaker: speakerID(0)},
			{Start: 12.5, End: 16.0, Text: "Yes, I'm really excited to share my thoughts.", Speaker: speakerID(1)},
			{Start: 16.5, End: 20.0, Text: "Let's start with the first question.", Speaker: speakerID(0)},
			{Start: 20.5, End: 24.0, Text: "Sure, go ahead.", Speaker: speakerID(1)},
		},
	}
}

// AssignSpeakersByGaps assigns speaker identities using pause lengths when
// diarization is unavailable. A silence longer than threshold seconds between
// consecutive segments flips the active speaker between SPEAKER_00 and
// SPEAKER_01; shorter pauses keep the current speaker. The input transcript
// is not modified.
func AssignSpeakersByGaps(transcript *Transcript, threshold float64) *Transcript {
	out := &Transcript{
		Language: transcript.Language,
		Source:   SourceHeuristic,
		Segments: make([]Segment, len(transcript.Segments)),
	}
	copy(out.Segments, transcript.Segments)

	current := 0
	for i := range out.Segments {
		if i > 0 {
			gap := out.Segments[i].Start - out.Segments[i-1].End
			if gap > threshold {
				current = 1 - current
			}
		}
		out.Segments[i].Speaker = speakerID(current)
	}
	return out
}
