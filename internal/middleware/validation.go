package middleware

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ValidateID rejects requests whose {param} URL parameter is not a UUID
// with 400 before they reach the handler.
func ValidateID(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateUUID(chi.URLParam(r, param)); err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+param+" format")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateUUID reports whether id is a well-formed UUID.
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid id format")
	}
	return nil
}
