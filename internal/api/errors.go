package api

import (
	"log/slog"
	"net/http"

	"voxsplit/internal/api/shared"
	"voxsplit/internal/apperrors"
)

// HandleServiceError maps a job service error to an HTTP error response.
// 4xx messages are safe to show callers; 5xx details stay in the logs.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
			"trace_id", shared.GetTraceID(r.Context()))
		message = "internal server error"
	}

	shared.RespondWithError(w, r, status, message)
}
