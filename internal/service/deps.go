package service

import (
	"context"
	"time"

	"github.com/capitalize-ai/calendar-assistant/internal/calendar"
	"github.com/capitalize-ai/calendar-assistant/internal/extractor"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

// EventStore is the event half of the record store.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, userID, id string) (*model.Event, error)
	SaveEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, userID, id string) error
	FindEventByRemoteID(ctx context.Context, remoteID string) (*model.Event, error)
	MarkEventSynced(ctx context.Context, id, remoteID string, at time.Time) error
	SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error
	ListUpcomingEvents(ctx context.Context, userID string, from time.Time, syncStatus *model.SyncStatus) ([]model.Event, error)
	ListUnsyncedEvents(ctx context.Context, userID string) ([]model.Event, error)
	ListEventsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.Event, error)
}

// ConversationStore is the conversation half of the record store.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID string) (*model.Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, userID, id string) error
	AddMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// RemoteCalendar is the sentinel-returning calendar boundary.
type RemoteCalendar interface {
	Configured() bool
	ProviderName() string
	CreateEvent(ctx context.Context, spec calendar.EventSpec) string
	UpdateEvent(ctx context.Context, remoteID string, spec calendar.EventSpec) bool
	DeleteEvent(ctx context.Context, remoteID string) bool
	ListUpcomingEvents(ctx context.Context, limit int) []calendar.RemoteEvent
}

// IntentExtractor turns conversation history into a reply and drafts.
type IntentExtractor interface {
	Extract(ctx context.Context, turns []model.Turn, now time.Time) extractor.Result
}

// Analyzer runs the review operations over stored events.
type Analyzer interface {
	AnalyzePatterns(ctx context.Context, events []model.Event) model.Insights
	Summarize(ctx context.Context, events []model.Event) string
}
