package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "voxsplit/internal/api/middleware"
)

// buildRouter configures the HTTP routes and middleware chain.
func (app *application) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.MetricsMiddleware(app.metrics))

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", app.handler.SubmitJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/status", app.handler.GetStatus)
			r.Post("/cancel", app.handler.CancelJob)
			r.Post("/retry", app.handler.RetryJob)
			r.Get("/tracks", app.handler.ListTracks)
			r.Put("/tracks/{speakerID}/label", app.handler.UpdateLabel)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}
