package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the authoritative processing state of a job.
type JobStatus string

// Possible job status values. The string tags are persisted and rendered
// verbatim by the web layer.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobStep is the sub-state within Processing. Once a job is terminal the
// step is informational only.
type JobStep string

// Possible job step values, in pipeline order plus the two short-circuit
// steps.
const (
	JobStepUploaded     JobStep = "uploaded"
	JobStepConverting   JobStep = "converting"
	JobStepTranscribing JobStep = "transcribing"
	JobStepSeparating   JobStep = "separating"
	JobStepFinalizing   JobStep = "finalizing"
	JobStepCompleted    JobStep = "completed"
	JobStepCancelled    JobStep = "cancelled"
	JobStepError        JobStep = "error"
)

// MaxErrorMessageLen bounds the persisted error message for failed jobs.
const MaxErrorMessageLen = 500

// Common validation errors for Job.
var (
	ErrEmptyJobID        = errors.New("job ID cannot be empty")
	ErrEmptyJobFilename  = errors.New("job original filename cannot be empty")
	ErrEmptyJobFilePath  = errors.New("job uploaded file path cannot be empty")
	ErrInvalidJobStatus  = errors.New("invalid job status")
	ErrInvalidJobStep    = errors.New("invalid job step")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 100")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Job represents one submitted processing request and its lifecycle state.
// The pipeline executor is the sole writer of Status/Step/Progress while the
// job runs; everything else is set once.
type Job struct {
	ID               uuid.UUID  `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	UploadedFilePath string     `json:"uploaded_file_path"`
	FileSize         int64      `json:"file_size"`
	Status           JobStatus  `json:"status"`
	Step             JobStep    `json:"step"`
	Progress         int        `json:"progress"`
	SpeakerCount     int        `json:"speaker_count"`
	OutputDirectory  string     `json:"output_directory"`
	ErrorMessage     string     `json:"error_message"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending Job for a stored upload. It generates a new UUID,
// sets step to uploaded and progress to zero, and validates the result.
func NewJob(originalFilename, uploadedFilePath string, fileSize int64) (*Job, error) {
	job := &Job{
		ID:               uuid.New(),
		OriginalFilename: originalFilename,
		UploadedFilePath: uploadedFilePath,
		FileSize:         fileSize,
		Status:           JobStatusPending,
		Step:             JobStepUploaded,
		Progress:         0,
		CreatedAt:        time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if j.OriginalFilename == "" {
		return ErrEmptyJobFilename
	}
	if j.UploadedFilePath == "" {
		return ErrEmptyJobFilePath
	}
	if !IsValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}
	if !IsValidJobStep(j.Step) {
		return ErrInvalidJobStep
	}
	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}
	return nil
}

// IsTerminal reports whether the status is a one-way final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsTerminal reports whether the job has reached a one-way final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsValidJobStep checks if the given step is a valid JobStep.
func IsValidJobStep(step JobStep) bool {
	switch step {
	case JobStepUploaded, JobStepConverting, JobStepTranscribing, JobStepSeparating,
		JobStepFinalizing, JobStepCompleted, JobStepCancelled, JobStepError:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the allowed status state machine edges.
// Failed->Processing is permitted only for the explicit retry operation;
// Completed is one-way.
func ValidTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusProcessing
	case JobStatusCompleted:
		return false
	default:
		return false
	}
}

// StageOrder returns the position of a pipeline step in the fixed execution
// order, or -1 for the short-circuit steps (cancelled, error).
func StageOrder(step JobStep) int {
	switch step {
	case JobStepUploaded:
		return 0
	case JobStepConverting:
		return 1
	case JobStepTranscribing:
		return 2
	case JobStepSeparating:
		return 3
	case JobStepFinalizing:
		return 4
	case JobStepCompleted:
		return 5
	default:
		return -1
	}
}

// TruncateErrorMessage bounds a failure message to MaxErrorMessageLen runes.
func TruncateErrorMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorMessageLen {
		return msg
	}
	return string(runes[:MaxErrorMessageLen])
}
