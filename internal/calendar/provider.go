// Package calendar mirrors local events to an external calendar. Providers
// speak to a concrete service and return errors; Adapter wraps a provider and
// converts every failure into a logged sentinel value.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

// ErrNotAuthenticated means the provider has no usable credentials.
var ErrNotAuthenticated = errors.New("calendar provider not authenticated")

// EventSpec carries the fields pushed to the remote calendar. A zero End
// means one hour after Start. Empty optional fields are left unset remotely;
// an empty Status is treated as confirmed on create and kept on update.
type EventSpec struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Attendees   []string
	Status      model.EventStatus
}

// SpecFromEvent copies the pushed fields of a stored event.
func SpecFromEvent(e *model.Event) EventSpec {
	return EventSpec{
		Title:       e.Title,
		Start:       e.StartTime,
		End:         e.EndTime,
		Description: model.StrVal(e.Description),
		Location:    model.StrVal(e.Location),
		Attendees:   e.Attendees,
		Status:      e.Status,
	}
}

// RemoteEvent is an event as listed by the provider. Start and End are
// ISO-8601 strings; all-day events carry a bare date.
type RemoteEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start_time"`
	End         string `json:"end_time,omitempty"`
	Status      string `json:"status"`
}

// Provider is a concrete calendar backend.
type Provider interface {
	Name() string
	Create(ctx context.Context, spec EventSpec) (string, error)
	Update(ctx context.Context, remoteID string, spec EventSpec) error
	Delete(ctx context.Context, remoteID string) error
	ListUpcoming(ctx context.Context, limit int) ([]RemoteEvent, error)
}

// ParseRemoteTime reads a RemoteEvent timestamp: RFC 3339 or a bare date.
func ParseRemoteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
