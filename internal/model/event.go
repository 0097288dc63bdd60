package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DefaultDuration is applied when an event has no usable end time.
const DefaultDuration = time.Hour

// EventStatus is the lifecycle state of a calendar event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusCancelled EventStatus = "cancelled"
	StatusTentative EventStatus = "tentative"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusTentative:
		return true
	}
	return false
}

// SyncStatus records how the local event relates to its remote mirror.
type SyncStatus string

const (
	// SyncPending: never reached the remote calendar.
	SyncPending SyncStatus = "pending"
	// SyncSynced: the remote copy matched as of SyncedAt.
	SyncSynced SyncStatus = "synced"
	// SyncStale: a local change failed to propagate.
	SyncStale SyncStatus = "stale"
)

// Valid reports whether s is a known sync status.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncPending, SyncSynced, SyncStale:
		return true
	}
	return false
}

// Event is a locally stored calendar event. RemoteID is the provider's id and
// is unique when set.
type Event struct {
	ID             string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID *string     `gorm:"type:varchar(36);index" json:"conversation_id"`
	MessageID      *string     `gorm:"type:varchar(36)" json:"message_id"`
	UserID         string      `gorm:"type:varchar(128);index;not null" json:"user_id"`
	Title          string      `gorm:"type:varchar(255);not null" json:"title"`
	Description    *string     `gorm:"type:text" json:"description"`
	StartTime      time.Time   `gorm:"index;not null" json:"start_time"`
	EndTime        time.Time   `gorm:"not null" json:"end_time"`
	Location       *string     `gorm:"type:varchar(255)" json:"location"`
	Attendees      []string    `gorm:"serializer:json" json:"attendees"`
	Status         EventStatus `gorm:"type:varchar(16);not null;default:confirmed" json:"status"`
	RemoteID       *string     `gorm:"type:varchar(255);uniqueIndex" json:"calendar_event_id"`
	SyncStatus     SyncStatus  `gorm:"type:varchar(16);index;not null;default:pending" json:"sync_status"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	SyncedAt       *time.Time  `json:"synced_at"`
	RemindedAt     *time.Time  `json:"-"`
}

// BeforeSave normalizes defaults and rejects unknown enum values.
func (e *Event) BeforeSave(_ *gorm.DB) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: event title is required", ErrInvalidInput)
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("%w: event start time is required", ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Status == "" {
		e.Status = StatusConfirmed
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: event status %q", ErrInvalidInput, e.Status)
	}
	if e.SyncStatus == "" {
		e.SyncStatus = SyncPending
	}
	if !e.SyncStatus.Valid() {
		return fmt.Errorf("%w: sync status %q", ErrInvalidInput, e.SyncStatus)
	}
	e.StartTime = e.StartTime.UTC()
	e.EndTime = EndOrDefault(e.StartTime, e.EndTime.UTC())
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	return nil
}

// EndOrDefault returns end, or start+1h when end is unset or earlier than start.
func EndOrDefault(start, end time.Time) time.Time {
	if end.IsZero() || end.Before(start) {
		return start.Add(DefaultDuration)
	}
	return end
}

// CleanAttendees trims each address and drops empty entries.
func CleanAttendees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// StrPtr returns nil for an empty or blank string.
func StrPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// StrVal dereferences p, treating nil as "".
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Accepted request time layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTime parses s with the accepted layouts. Layouts without a zone are
// read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized time %q", ErrInvalidInput, s)
}

// FlexTime is a JSON time that accepts the layouts of ParseTime.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: time must be a string", ErrInvalidInput)
	}
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

// EventInput is the body of POST /events and PUT /events/{id}. A PUT replaces
// every field; Status keeps its current value when omitted.
type EventInput struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	StartTime   FlexTime     `json:"start_time"`
	EndTime     *FlexTime    `json:"end_time"`
	Location    *string      `json:"location"`
	Attendees   []string     `json:"attendees"`
	Status      *EventStatus `json:"status"`
}

// Validate checks required fields.
func (in *EventInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", ErrInvalidInput)
	}
	if in.Status != nil && !in.Status.Valid() {
		return fmt.Errorf("%w: status must be confirmed, cancelled or tentative", ErrInvalidInput)
	}
	return nil
}

// End returns the requested end time, or zero when none was given.
func (in *EventInput) End() time.Time {
	if in.EndTime == nil {
		return time.Time{}
	}
	return in.EndTime.Time
}

// Insights is the pattern-analysis result served by GET /events/insights.
type Insights struct {
	Insights    []string `json:"insights"`
	Suggestions []string `json:"suggestions"`
	PeakHours   []int    `json:"peak_hours,omitempty"`
	PeakDays    []string `json:"peak_days,omitempty"`
}

// EmptyInsights is the fallback when analysis is unavailable.
func EmptyInsights() Insights {
	return Insights{Insights: []string{}, Suggestions: []string{}}
}
