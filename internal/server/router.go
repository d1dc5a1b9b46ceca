// Package server owns the HTTP surface: the router and the server
// lifecycle.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reviewloop/reviewloop/internal/server/handler"
)

// NewRouter builds the service router.
func NewRouter(events *handler.EventHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events/pr-review", events.ReviewRequested)
		r.Post("/digests/trigger", events.TriggerDigest)
		r.Post("/index", events.IndexRepository)
	})

	return r
}
