package model

import "time"

// NotificationKind distinguishes reviewer output.
type NotificationKind string

const (
	NotifyReminder NotificationKind = "reminder"
	NotifyInsights NotificationKind = "insights"
)

// Notification is one message produced by the periodic reviewer. Reminders
// carry the event fields; insight notifications carry Insights and no user.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	UserID    string           `json:"user_id,omitempty"`
	EventID   string           `json:"event_id,omitempty"`
	Title     string           `json:"title,omitempty"`
	StartTime *time.Time       `json:"start_time,omitempty"`
	Message   string           `json:"message,omitempty"`
	Insights  *Insights        `json:"insights,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
