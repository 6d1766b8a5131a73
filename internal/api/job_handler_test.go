package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxsplit/internal/api"
	"voxsplit/internal/domain"
	"voxsplit/internal/intake"
	"voxsplit/internal/job"
	"voxsplit/internal/mocks"
	"voxsplit/internal/observability"
)

type handlerHarness struct {
	jobs    *mocks.JobStore
	tracks  *mocks.TrackStore
	service *job.Service
	server  *httptest.Server
}

// newHandlerHarness wires a real service over in-memory stores behind the
// job routes. The manager is never started, so submitted jobs stay queued
// and handlers can be exercised deterministically.
func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	h := &handlerHarness{
		jobs:   mocks.NewJobStore(),
		tracks: mocks.NewTrackStore(),
	}

	registry := job.NewRegistry()
	tracker := job.NewStatusTracker(h.jobs, registry)
	manager := job.NewManager(h.jobs, tracker, registry, nil,
		observability.NewMetrics(), job.DefaultManagerConfig(), slog.Default())
	h.service = job.NewService(manager, tracker, registry, h.jobs, h.tracks)

	handler := api.NewJobHandler(h.service, intake.New(t.TempDir(), 10))

	r := chi.NewRouter()
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", handler.SubmitJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/status", handler.GetStatus)
			r.Post("/cancel", handler.CancelJob)
			r.Post("/retry", handler.RetryJob)
			r.Get("/tracks", handler.ListTracks)
			r.Put("/tracks/{speakerID}/label", handler.UpdateLabel)
		})
	})

	h.server = httptest.NewServer(r)
	t.Cleanup(h.server.Close)
	return h
}

// submitUpload POSTs a multipart upload and returns the response.
func (h *handlerHarness) submitUpload(t *testing.T, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(h.server.URL+"/api/jobs", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// completedJob persists a completed job with two rendered tracks.
func (h *handlerHarness) completedJob(t *testing.T) *domain.Job {
	t.Helper()
	ctx := context.Background()

	j, err := domain.NewJob("episode.mp3", "/uploads/episode.mp3", 2048)
	require.NoError(t, err)
	require.NoError(t, h.jobs.CreateJob(ctx, j))
	require.NoError(t, h.jobs.UpdateJobStatus(ctx, j.ID,
		domain.JobStatusCompleted, domain.JobStepCompleted, 100, ""))

	var tracks []*domain.SpeakerTrack
	for i, words := range []int{120, 80} {
		speakerID := fmt.Sprintf("SPEAKER_%02d", i)
		track, err := domain.NewSpeakerTrack(j.ID, speakerID,
			"/output/"+j.ID.String()+"/"+speakerID+".wav", 30.5, words)
		require.NoError(t, err)
		tracks = append(tracks, track)
	}
	require.NoError(t, h.tracks.CreateTracks(ctx, tracks))
	return j
}

// failedJob persists a job that has already failed.
func (h *handlerHarness) failedJob(t *testing.T) *domain.Job {
	t.Helper()
	ctx := context.Background()

	j, err := domain.NewJob("episode.mp3", "/uploads/episode.mp3", 2048)
	require.NoError(t, err)
	require.NoError(t, h.jobs.CreateJob(ctx, j))
	require.NoError(t, h.jobs.UpdateJobStatus(ctx, j.ID,
		domain.JobStatusProcessing, domain.JobStepConverting, 10, ""))
	require.NoError(t, h.jobs.UpdateJobStatus(ctx, j.ID,
		domain.JobStatusFailed, domain.JobStepError, 10, "converting failed: boom"))
	return j
}

func TestSubmitJob(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp := h.submitUpload(t, "podcast.mp3", "fake audio bytes")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[api.JobResponse](t, resp)
	assert.Equal(t, "podcast.mp3", body.OriginalFilename)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "uploaded", body.Step)
	assert.Equal(t, 0, body.Progress)

	// The row is persisted before the response goes out.
	stored, err := h.jobs.GetJob(context.Background(), mustParseID(t, body.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}

func TestSubmitJobRejectsExtension(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp := h.submitUpload(t, "notes.txt", "not audio")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorBody](t, resp)
	assert.Contains(t, body.Error, "unsupported file type")
}

func TestSubmitJobMissingFileField(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "no file here"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(h.server.URL+"/api/jobs", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp := h.submitUpload(t, "podcast.mp3", "fake audio bytes")
	submitted := decodeBody[api.JobResponse](t, resp)

	statusResp, err := http.Get(h.server.URL + "/api/jobs/" + submitted.ID + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	body := decodeBody[api.StatusResponse](t, statusResp)
	assert.Equal(t, submitted.ID, body.ID)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, 0, body.Progress)
}

func TestGetStatusUnknownJob(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp, err := http.Get(h.server.URL + "/api/jobs/00000000-0000-0000-0000-000000000001/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetStatusInvalidID(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp, err := http.Get(h.server.URL + "/api/jobs/not-a-uuid/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorBody](t, resp)
	assert.Equal(t, "invalid job ID", body.Error)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)

	resp := h.submitUpload(t, "podcast.mp3", "fake audio bytes")
	submitted := decodeBody[api.JobResponse](t, resp)

	cancelResp, err := http.Post(h.server.URL+"/api/jobs/"+submitted.ID+"/cancel", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, cancelResp.StatusCode)

	body := decodeBody[api.StatusResponse](t, cancelResp)
	assert.Equal(t, "failed", body.Status)
	assert.Equal(t, "cancelled", body.Step)
	assert.Equal(t, 0, body.Progress)
	assert.Equal(t, "cancelled by user", body.ErrorMessage)

	// A second cancel hits a terminal job.
	again, err := http.Post(h.server.URL+"/api/jobs/"+submitted.ID+"/cancel", "", nil)
	require.NoError(t, err)
	defer func() { _ = again.Body.Close() }()
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestRetryJob(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)
	j := h.failedJob(t)

	resp, err := http.Post(h.server.URL+"/api/jobs/"+j.ID.String()+"/retry", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[api.StatusResponse](t, resp)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "uploaded", body.Step)
	assert.Equal(t, 0, body.Progress)
	assert.Empty(t, body.ErrorMessage)
}

func TestRetryJobNotFailed(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)
	j := h.completedJob(t)

	resp, err := http.Post(h.server.URL+"/api/jobs/"+j.ID.String()+"/retry", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListTracks(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)
	j := h.completedJob(t)

	resp, err := http.Get(h.server.URL + "/api/jobs/" + j.ID.String() + "/tracks")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[[]api.TrackResponse](t, resp)
	require.Len(t, body, 2)
	assert.Equal(t, "SPEAKER_00", body[0].SpeakerID)
	assert.Equal(t, "SPEAKER_00", body[0].DisplayName)
	assert.Equal(t, 120, body[0].WordCount)
	assert.Equal(t, "SPEAKER_01", body[1].SpeakerID)
}

func TestUpdateLabel(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness(t)
	j := h.completedJob(t)

	putLabel := func(speakerID, label string) *http.Response {
		payload, err := json.Marshal(api.UpdateLabelRequest{Label: label})
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPut,
			h.server.URL+"/api/jobs/"+j.ID.String()+"/tracks/"+speakerID+"/label",
			bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("valid label sticks", func(t *testing.T) {
		resp := putLabel("SPEAKER_00", "Alice")
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		track, err := h.tracks.GetTrack(context.Background(), j.ID, "SPEAKER_00")
		require.NoError(t, err)
		assert.Equal(t, "Alice", track.Label)
		assert.Equal(t, "Alice", track.DisplayName())
	})

	t.Run("unknown speaker", func(t *testing.T) {
		resp := putLabel("SPEAKER_07", "Ghost")
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("label too long", func(t *testing.T) {
		resp := putLabel("SPEAKER_00", strings.Repeat("a", 101))
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// Rejected by request validation, before the service is reached.
		body := decodeBody[errorBody](t, resp)
		assert.Equal(t, "invalid label", body.Error)
	})

	t.Run("label with control characters", func(t *testing.T) {
		resp := putLabel("SPEAKER_00", "Alice\x00")
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func mustParseID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
