package api

import (
	"time"

	"voxsplit/internal/domain"
	"voxsplit/internal/job"
)

// JobResponse is the representation of a job returned on submission.
type JobResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	Status           string    `json:"status"`
	Step             string    `json:"step"`
	Progress         int       `json:"progress"`
	CreatedAt        time.Time `json:"created_at"`
}

// StatusResponse is the polling payload for a job's current state.
type StatusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Step         string `json:"step"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message,omitempty"`
	SpeakerCount int    `json:"speaker_count,omitempty"`
}

// TrackResponse is one rendered speaker track.
type TrackResponse struct {
	SpeakerID       string  `json:"speaker_id"`
	Label           string  `json:"label,omitempty"`
	DisplayName     string  `json:"display_name"`
	FilePath        string  `json:"file_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	WordCount       int     `json:"word_count"`
}

// UpdateLabelRequest is the body for renaming a speaker track.
type UpdateLabelRequest struct {
	Label string `json:"label" validate:"max=100"`
}

func jobToResponse(j *domain.Job) JobResponse {
	return JobResponse{
		ID:               j.ID.String(),
		OriginalFilename: j.OriginalFilename,
		Status:           string(j.Status),
		Step:             string(j.Step),
		Progress:         j.Progress,
		CreatedAt:        j.CreatedAt,
	}
}

func statusToResponse(v job.StatusView) StatusResponse {
	return StatusResponse{
		ID:           v.JobID.String(),
		Status:       string(v.Status),
		Step:         string(v.Step),
		Progress:     v.Progress,
		ErrorMessage: v.ErrorMessage,
		SpeakerCount: v.SpeakerCount,
	}
}

func trackToResponse(t *domain.SpeakerTrack) TrackResponse {
	return TrackResponse{
		SpeakerID:       t.SpeakerID,
		Label:           t.Label,
		DisplayName:     t.DisplayName(),
		FilePath:        t.FilePath,
		DurationSeconds: t.DurationSeconds,
		WordCount:       t.WordCount,
	}
}
