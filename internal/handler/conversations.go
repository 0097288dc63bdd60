// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/calendar-assistant/internal/middleware"
	"github.com/capitalize-ai/calendar-assistant/internal/service"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	convs, err := h.service.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Conversation", "list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Conversation", "get conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(ctx, w, h.logger, err, "Conversation", "delete conversation")
		return
	}
	writeMessage(w, http.StatusOK, "Conversation deleted")
}
