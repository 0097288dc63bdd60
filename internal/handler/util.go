package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeMessage writes a {"message": ...} response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"message": message,
	})
}

// writeServiceError maps service errors to status codes. resource names the
// missing thing in 404 bodies. Unexpected errors are logged and reported as
// 500 with a generic message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, fallback *logger.Logger, err error, resource, action string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		logger.FromContext(ctx, fallback).Error("failed to "+action, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads a bounded JSON body into v. Failures wrap
// model.ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("%w: invalid request body", model.ErrInvalidInput)
	}
	return nil
}
