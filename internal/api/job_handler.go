package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"voxsplit/internal/api/shared"
	"voxsplit/internal/intake"
	"voxsplit/internal/job"
	"voxsplit/internal/platform/logger"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxMultipartMemory = 32 << 20

// JobHandler handles job-related HTTP requests.
type JobHandler struct {
	service *job.Service
	intake  *intake.Intake
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(service *job.Service, in *intake.Intake) *JobHandler {
	return &JobHandler{service: service, intake: in}
}

// SubmitJob handles POST /api/jobs requests: a multipart upload with the
// audio under field "file". Responds 202 since processing is asynchronous.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	if err := h.intake.Validate(header.Filename, header.Size); err != nil {
		HandleServiceError(w, r, err)
		return
	}

	storedPath, err := h.intake.Save(r.Context(), file, header.Filename)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	j, err := h.service.Submit(r.Context(), header.Filename, storedPath, header.Size)
	if err != nil {
		// The job never made it onto the queue; don't leave the upload behind.
		if rmErr := h.intake.Remove(storedPath); rmErr != nil {
			logger.FromContext(r.Context()).Warn("failed to remove orphaned upload",
				"path", storedPath, "error", rmErr)
		}
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(j))
}

// GetStatus handles GET /api/jobs/{id}/status requests.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(view))
}

// CancelJob handles POST /api/jobs/{id}/cancel requests.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		HandleServiceError(w, r, err)
		return
	}

	view, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(view))
}

// RetryJob handles POST /api/jobs/{id}/retry requests. Responds 202 like
// submission: the retried job processes asynchronously.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.Retry(r.Context(), id); err != nil {
		HandleServiceError(w, r, err)
		return
	}

	view, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, statusToResponse(view))
}

// ListTracks handles GET /api/jobs/{id}/tracks requests.
func (h *JobHandler) ListTracks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	tracks, err := h.service.Tracks(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	out := make([]TrackResponse, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// UpdateLabel handles PUT /api/jobs/{id}/tracks/{speakerID}/label requests.
func (h *JobHandler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	speakerID := chi.URLParam(r, "speakerID")

	var req UpdateLabelRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid label")
		return
	}

	if err := h.service.UpdateSpeakerLabel(r.Context(), id, speakerID, req.Label); err != nil {
		HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// jobID parses the {id} route parameter; on failure it writes the error
// response and reports false.
func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}
