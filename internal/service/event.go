package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/calendar"
	"github.com/capitalize-ai/calendar-assistant/internal/extractor"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/metrics"
)

// Event origins, used as metric labels.
const (
	OriginChat = "chat"
	OriginAPI  = "api"
	OriginPull = "pull"
)

// EventConfig tunes the event service.
type EventConfig struct {
	SyncLimit       int
	InsightLookback time.Duration
}

// EventService keeps local events and the remote calendar in a local-primary
// relationship: local writes decide success and remote calls are advisory.
type EventService struct {
	store    EventStore
	calendar RemoteCalendar
	analyzer Analyzer
	cfg      EventConfig
	logger   *logger.Logger
	now      func() time.Time
}

// NewEventService creates a new event service.
func NewEventService(store EventStore, cal RemoteCalendar, analyzer Analyzer, cfg EventConfig, log *logger.Logger) *EventService {
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = 20
	}
	if cfg.InsightLookback <= 0 {
		cfg.InsightLookback = 30 * 24 * time.Hour
	}
	return &EventService{
		store:    store,
		calendar: cal,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   log.Named("events"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CalendarConfigured reports whether a remote calendar is attached.
func (s *EventService) CalendarConfigured() bool {
	return s.calendar.Configured()
}

// CalendarName names the attached calendar provider.
func (s *EventService) CalendarName() string {
	return s.calendar.ProviderName()
}

// CreateFromDrafts persists each usable draft, then tries to push it to the
// remote calendar. Drafts without a title or a parsable start are skipped.
// A store failure stops the batch and is returned with the events saved so far.
func (s *EventService) CreateFromDrafts(ctx context.Context, userID, conversationID, messageID string, drafts []extractor.EventDraft) ([]model.Event, error) {
	created := make([]model.Event, 0, len(drafts))
	for _, d := range drafts {
		if d.Title == "" || d.Start == nil {
			s.logger.Warn("skipping unusable draft",
				zap.String("title", d.Title),
				zap.String("start_time", d.StartRaw),
			)
			continue
		}

		ev := model.Event{
			UserID:         userID,
			ConversationID: model.StrPtr(conversationID),
			MessageID:      model.StrPtr(messageID),
			Title:          d.Title,
			Description:    model.StrPtr(d.Description),
			StartTime:      *d.Start,
			Location:       model.StrPtr(d.Location),
			Attendees:      model.CleanAttendees(d.Attendees),
		}
		if d.End != nil {
			ev.EndTime = *d.End
		}

		if err := s.persist(ctx, &ev, OriginChat); err != nil {
			return created, err
		}
		created = append(created, ev)
	}
	return created, nil
}

// Create stores a directly submitted event and pushes it remotely.
func (s *EventService) Create(ctx context.Context, userID string, in *model.EventInput) (*model.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ev := model.Event{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartTime:   in.StartTime.Time,
		EndTime:     in.End(),
		Location:    in.Location,
		Attendees:   model.CleanAttendees(in.Attendees),
	}
	if in.Status != nil {
		ev.Status = *in.Status
	}
	if err := s.persist(ctx, &ev, OriginAPI); err != nil {
		return nil, err
	}
	return &ev, nil
}

// persist writes ev locally, then attempts the remote create. The local row
// stays pending when the remote call fails.
func (s *EventService) persist(ctx context.Context, ev *model.Event, origin string) error {
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return fmt.Errorf("persist event %q: %w", ev.Title, err)
	}
	metrics.EventsCreated.WithLabelValues(origin).Inc()
	s.push(ctx, ev)
	return nil
}

func (s *EventService) push(ctx context.Context, ev *model.Event) {
	remoteID := s.calendar.CreateEvent(ctx, calendar.SpecFromEvent(ev))
	if remoteID == "" {
		s.logger.Info("event left unsynced", zap.String("event_id", ev.ID))
		return
	}

	at := s.now()
	if err := s.store.MarkEventSynced(ctx, ev.ID, remoteID, at); err != nil {
		s.logger.Error("failed to record remote id",
			zap.String("event_id", ev.ID),
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
		return
	}
	ev.RemoteID = &remoteID
	ev.SyncedAt = &at
	ev.SyncStatus = model.SyncSynced
}

// Get returns one of the user's events.
func (s *EventService) Get(ctx context.Context, userID, id string) (*model.Event, error) {
	return s.store.GetEvent(ctx, userID, id)
}

// ListUpcoming returns the user's events from now on, earliest first.
func (s *EventService) ListUpcoming(ctx context.Context, userID string, syncStatus *model.SyncStatus) ([]model.Event, error) {
	return s.store.ListUpcomingEvents(ctx, userID, s.now(), syncStatus)
}

// Update replaces the event's fields and mirrors the change remotely when
// the event has a remote id. A remote failure marks the event stale; the
// local update is kept.
func (s *EventService) Update(ctx context.Context, userID, id string, in *model.EventInput) (*model.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ev, err := s.store.GetEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	// A moved or re-confirmed event is due for a fresh reminder.
	if !ev.StartTime.Equal(in.StartTime.Time) ||
		(in.Status != nil && *in.Status == model.StatusConfirmed && ev.Status != model.StatusConfirmed) {
		ev.RemindedAt = nil
	}

	ev.Title = strings.TrimSpace(in.Title)
	ev.Description = in.Description
	ev.StartTime = in.StartTime.Time
	ev.EndTime = in.End()
	ev.Location = in.Location
	ev.Attendees = model.CleanAttendees(in.Attendees)
	if in.Status != nil {
		ev.Status = *in.Status
	}

	if err := s.store.SaveEvent(ctx, ev); err != nil {
		return nil, err
	}

	if ev.RemoteID == nil {
		return ev, nil
	}

	if s.calendar.UpdateEvent(ctx, *ev.RemoteID, calendar.SpecFromEvent(ev)) {
		at := s.now()
		if err := s.store.MarkEventSynced(ctx, ev.ID, *ev.RemoteID, at); err != nil {
			s.logger.Error("failed to record sync time", zap.String("event_id", ev.ID), zap.Error(err))
			return ev, nil
		}
		ev.SyncedAt = &at
		ev.SyncStatus = model.SyncSynced
		return ev, nil
	}

	s.logger.Warn("remote update failed; local copy kept", zap.String("event_id", ev.ID))
	if err := s.store.SetSyncStatus(ctx, ev.ID, model.SyncStale); err != nil {
		s.logger.Error("failed to mark event stale", zap.String("event_id", ev.ID), zap.Error(err))
		return ev, nil
	}
	ev.SyncStatus = model.SyncStale
	return ev, nil
}

// Delete removes the remote copy, when there is one, then the local event.
// The remote delete is attempted once and its failure does not block the
// local delete.
func (s *EventService) Delete(ctx context.Context, userID, id string) error {
	ev, err := s.store.GetEvent(ctx, userID, id)
	if err != nil {
		return err
	}
	if ev.RemoteID != nil {
		if !s.calendar.DeleteEvent(ctx, *ev.RemoteID) {
			s.logger.Warn("remote delete failed; deleting locally",
				zap.String("event_id", ev.ID),
				zap.String("remote_id", *ev.RemoteID),
			)
		}
	}
	return s.store.DeleteEvent(ctx, userID, id)
}

// PullRemote copies upcoming remote events that have no local counterpart
// into userID's calendar and returns how many were inserted. Events already
// known locally are left untouched.
func (s *EventService) PullRemote(ctx context.Context, userID string) (int, error) {
	remote := s.calendar.ListUpcomingEvents(ctx, s.cfg.SyncLimit)

	inserted := 0
	for _, r := range remote {
		if r.ID == "" {
			continue
		}

		_, err := s.store.FindEventByRemoteID(ctx, r.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return inserted, fmt.Errorf("look up remote event %s: %w", r.ID, err)
		}

		ev, ok := s.fromRemote(r, userID)
		if !ok {
			continue
		}
		if err := s.store.CreateEvent(ctx, ev); err != nil {
			s.logger.Warn("failed to insert pulled event", zap.String("remote_id", r.ID), zap.Error(err))
			continue
		}
		metrics.EventsCreated.WithLabelValues(OriginPull).Inc()
		inserted++
	}

	s.logger.Info("pull sync finished",
		zap.String("user_id", userID),
		zap.Int("listed", len(remote)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

func (s *EventService) fromRemote(r calendar.RemoteEvent, userID string) (*model.Event, bool) {
	start, err := calendar.ParseRemoteTime(r.Start)
	if err != nil {
		s.logger.Warn("skipping remote event with bad start", zap.String("remote_id", r.ID), zap.String("start", r.Start))
		return nil, false
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "(untitled)"
	}

	status := model.EventStatus(strings.ToLower(r.Status))
	if !status.Valid() {
		status = model.StatusConfirmed
	}

	remoteID := r.ID
	at := s.now()
	ev := &model.Event{
		UserID:      userID,
		Title:       title,
		Description: model.StrPtr(r.Description),
		StartTime:   start,
		Location:    model.StrPtr(r.Location),
		Status:      status,
		RemoteID:    &remoteID,
		SyncStatus:  model.SyncSynced,
		SyncedAt:    &at,
	}
	if r.End != "" {
		if end, err := calendar.ParseRemoteTime(r.End); err == nil {
			ev.EndTime = end
		}
	}
	return ev, true
}

// PushUnsynced retries the remote side of userID's pending and stale events
// once each and returns how many are now synced.
func (s *EventService) PushUnsynced(ctx context.Context, userID string) (int, error) {
	events, err := s.store.ListUnsyncedEvents(ctx, userID)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range events {
		ev := &events[i]
		if ev.RemoteID == nil {
			s.push(ctx, ev)
			if ev.RemoteID != nil {
				synced++
			}
			continue
		}
		if !s.calendar.UpdateEvent(ctx, *ev.RemoteID, calendar.SpecFromEvent(ev)) {
			continue
		}
		if err := s.store.MarkEventSynced(ctx, ev.ID, *ev.RemoteID, s.now()); err != nil {
			s.logger.Error("failed to record sync time", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}

// Insights analyzes the user's events created within the lookback window.
func (s *EventService) Insights(ctx context.Context, userID string) (model.Insights, error) {
	events, err := s.store.ListEventsCreatedSince(ctx, userID, s.now().Add(-s.cfg.InsightLookback))
	if err != nil {
		return model.Insights{}, err
	}
	if len(events) == 0 {
		return model.EmptyInsights(), nil
	}
	return s.analyzer.AnalyzePatterns(ctx, events), nil
}

// Summary describes the user's upcoming confirmed events.
func (s *EventService) Summary(ctx context.Context, userID string) (string, error) {
	events, err := s.store.ListUpcomingEvents(ctx, userID, s.now(), nil)
	if err != nil {
		return "", err
	}
	confirmed := events[:0]
	for _, e := range events {
		if e.Status == model.StatusConfirmed {
			confirmed = append(confirmed, e)
		}
	}
	return s.analyzer.Summarize(ctx, confirmed), nil
}
