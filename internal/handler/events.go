package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/middleware"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/internal/service"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// EventHandler handles event and calendar sync endpoints.
type EventHandler struct {
	service *service.EventService
	logger  *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(svc *service.EventService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /events. The optional sync_status query parameter
// narrows the result to pending, synced or stale events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter *model.SyncStatus
	if v := r.URL.Query().Get("sync_status"); v != "" {
		s := model.SyncStatus(v)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "sync_status must be pending, synced or stale")
			return
		}
		filter = &s
	}

	events, err := h.service.ListUpcoming(ctx, middleware.GetUserID(ctx), filter)
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Create handles POST /events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.service.Create(ctx, middleware.GetUserID(ctx), &in)
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "create event")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// Get handles GET /events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ev, err := h.service.Get(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "get event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Update handles PUT /events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.service.Update(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), &in)
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "update event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Delete handles DELETE /events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "delete event")
		return
	}
	writeMessage(w, http.StatusOK, "Event deleted")
}

// Insights handles GET /events/insights
func (h *EventHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	insights, err := h.service.Insights(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "analyze events")
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// Summary handles GET /events/summary
func (h *EventHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.service.Summary(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Event", "summarize events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// syncResponse is the body of POST /sync-calendar.
type syncResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Sync handles POST /sync-calendar. It always answers 200; failures are
// reported in the message with a zero count.
func (h *EventHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	label := calendarLabel(h.service.CalendarName())

	if !h.service.CalendarConfigured() {
		writeJSON(w, http.StatusOK, syncResponse{Message: fmt.Sprintf("Sync failed - %s not configured", label)})
		return
	}

	n, err := h.service.PullRemote(ctx, middleware.GetUserID(ctx))
	if err != nil {
		logger.FromContext(ctx, h.logger).Error("calendar sync failed", zap.Error(err))
		writeJSON(w, http.StatusOK, syncResponse{Message: "Sync failed"})
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Message: fmt.Sprintf("Synced %d events from %s", n, label),
		Count:   n,
	})
}

func calendarLabel(provider string) string {
	switch provider {
	case "google":
		return "Google Calendar"
	case "caldav":
		return "CalDAV calendar"
	default:
		return "remote calendar"
	}
}
