// Package handler implements the HTTP endpoints that feed events into
// the runtime.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/runtime"
)

// EventQueue accepts events for asynchronous processing. A full queue
// returns an error, which surfaces as 503 to the caller.
type EventQueue interface {
	Send(ctx context.Context, event runtime.Event) error
}

// EventHandler translates HTTP requests into runtime events. Handlers
// validate and enqueue; all real work happens in the runtime functions.
type EventHandler struct {
	queue  EventQueue
	logger *slog.Logger
}

// NewEventHandler creates the HTTP event handler.
func NewEventHandler(queue EventQueue, logger *slog.Logger) *EventHandler {
	if queue == nil {
		panic("event handler requires an event queue")
	}
	return &EventHandler{queue: queue, logger: logger}
}

// ReviewRequested handles POST /api/v1/events/pr-review.
func (h *EventHandler) ReviewRequested(w http.ResponseWriter, r *http.Request) {
	var payload core.ReviewRequested
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := payload.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueue(w, r, core.EventPRReviewRequested, payload)
}

// TriggerDigest handles POST /api/v1/digests/trigger. Manual triggers
// bypass the weekly delivery guard.
func (h *EventHandler) TriggerDigest(w http.ResponseWriter, r *http.Request) {
	var payload core.WeeklySummaryRequested
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.TriggeredBy == "" {
		payload.TriggeredBy = core.TriggeredByManual
	}
	if err := payload.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueue(w, r, core.EventWeeklySummary, payload)
}

// IndexRepository handles POST /api/v1/index.
func (h *EventHandler) IndexRepository(w http.ResponseWriter, r *http.Request) {
	var payload core.IndexRequested
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := payload.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueue(w, r, core.EventIndexRequested, payload)
}

func (h *EventHandler) enqueue(w http.ResponseWriter, r *http.Request, eventName string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to encode event")
		return
	}

	err = h.queue.Send(r.Context(), runtime.Event{Name: eventName, Payload: raw})
	if err != nil {
		h.logger.Error("failed to queue event", "event", eventName, "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "event queue is full, try again later")
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"event":  eventName,
	})
}

func (h *EventHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *EventHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
