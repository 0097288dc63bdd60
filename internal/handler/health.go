package handler

import (
	"context"
	"net/http"
	"time"
)

// Version is reported by GET /.
const Version = "2.0"

// Pinger is a dependency the readiness check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new health handler. Nil checks are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	h := &HealthHandler{checks: map[string]Pinger{}}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Backend is running!",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": name + ": " + err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Root handles GET / with a capability descriptor.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "running",
		"message":  "AI Calendar Chat Assistant API",
		"version":  Version,
		"features": []string{"chat", "voice", "agentic_reminders", "pattern_analysis"},
		"endpoints": map[string]string{
			"health":        "/health",
			"chat":          "/chat",
			"voice":         "/chat/voice",
			"events":        "/events",
			"insights":      "/events/insights",
			"summary":       "/events/summary",
			"conversations": "/conversations",
			"sync":          "/sync-calendar",
		},
	})
}
