package domain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxSpeakerLabelLen bounds user-editable speaker labels.
const MaxSpeakerLabelLen = 100

// Common validation errors for SpeakerTrack.
var (
	ErrEmptyTrackJobID     = errors.New("track job ID cannot be empty")
	ErrEmptyTrackSpeakerID = errors.New("track speaker ID cannot be empty")
	ErrEmptyTrackFilePath  = errors.New("track file path cannot be empty")
	ErrLabelTooLong        = errors.New("speaker label exceeds maximum length")
	ErrLabelBadCharset     = errors.New("speaker label can only contain letters, numbers, spaces, hyphens, and underscores")
)

// speakerLabelPattern restricts labels to a safe display charset.
var speakerLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)

// SpeakerTrack is one per-speaker output of a completed job. (JobID,
// SpeakerID) is unique; tracks are created in one batch during finalizing
// and only the label is mutable afterwards.
type SpeakerTrack struct {
	JobID           uuid.UUID `json:"job_id"`
	SpeakerID       string    `json:"speaker_id"`
	Label           string    `json:"label"`
	FilePath        string    `json:"file_path"`
	DurationSeconds float64   `json:"duration_seconds"`
	WordCount       int       `json:"word_count"`
}

// NewSpeakerTrack creates a track record for a rendered speaker file.
func NewSpeakerTrack(jobID uuid.UUID, speakerID, filePath string, durationSeconds float64, wordCount int) (*SpeakerTrack, error) {
	track := &SpeakerTrack{
		JobID:           jobID,
		SpeakerID:       speakerID,
		FilePath:        filePath,
		DurationSeconds: durationSeconds,
		WordCount:       wordCount,
	}

	if err := track.Validate(); err != nil {
		return nil, err
	}

	return track, nil
}

// Validate checks if the SpeakerTrack has valid data.
func (t *SpeakerTrack) Validate() error {
	if t.JobID == uuid.Nil {
		return ErrEmptyTrackJobID
	}
	if t.SpeakerID == "" {
		return ErrEmptyTrackSpeakerID
	}
	if t.FilePath == "" {
		return ErrEmptyTrackFilePath
	}
	return nil
}

// DisplayName returns the user label when set, the engine speaker ID
// otherwise.
func (t *SpeakerTrack) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	return t.SpeakerID
}

// ValidateSpeakerLabel checks a proposed label against the length and
// charset rules. An empty label is allowed and clears the custom name.
func ValidateSpeakerLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	if len([]rune(label)) > MaxSpeakerLabelLen {
		return ErrLabelTooLong
	}
	if !speakerLabelPattern.MatchString(label) {
		return ErrLabelBadCharset
	}
	return nil
}
