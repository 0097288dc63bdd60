package store

import (
	"context"
	"fmt"
	"time"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

// CreateEvent inserts e. Hooks fill id, defaults and the end time.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent loads one of userID's events.
func (s *Store) GetEvent(ctx context.Context, userID, id string) (*model.Event, error) {
	var e model.Event
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// SaveEvent writes every field of e.
func (s *Store) SaveEvent(ctx context.Context, e *model.Event) error {
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// DeleteEvent removes one of userID's events.
func (s *Store) DeleteEvent(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Event{})
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// FindEventByRemoteID looks up the event mirroring remoteID, across all users.
func (s *Store) FindEventByRemoteID(ctx context.Context, remoteID string) (*model.Event, error) {
	var e model.Event
	if err := s.db.WithContext(ctx).Where("remote_id = ?", remoteID).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// MarkEventSynced stamps the remote id and sync time without touching other columns.
func (s *Store) MarkEventSynced(ctx context.Context, id, remoteID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"remote_id":   remoteID,
			"sync_status": model.SyncSynced,
			"synced_at":   at.UTC(),
		}).Error
}

// SetSyncStatus records a sync state change.
func (s *Store) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: sync status %q", model.ErrInvalidInput, status)
	}
	return s.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ?", id).
		UpdateColumn("sync_status", status).Error
}

// ListUpcomingEvents returns userID's events starting at or after from, in
// ascending start order, optionally filtered by sync status.
func (s *Store) ListUpcomingEvents(ctx context.Context, userID string, from time.Time, syncStatus *model.SyncStatus) ([]model.Event, error) {
	events := []model.Event{}
	q := s.db.WithContext(ctx).Where("user_id = ? AND start_time >= ?", userID, from.UTC())
	if syncStatus != nil {
		q = q.Where("sync_status = ?", *syncStatus)
	}
	if err := q.Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// ListUnsyncedEvents returns userID's events that are pending or stale.
func (s *Store) ListUnsyncedEvents(ctx context.Context, userID string) ([]model.Event, error) {
	events := []model.Event{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND sync_status IN ?", userID, []model.SyncStatus{model.SyncPending, model.SyncStale}).
		Order("start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list unsynced events: %w", err)
	}
	return events, nil
}

// ListDueForReminder returns confirmed, not yet reminded events of every user
// with start in (from, to].
func (s *Store) ListDueForReminder(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	events := []model.Event{}
	err := s.db.WithContext(ctx).
		Where("start_time > ? AND start_time <= ? AND status = ? AND reminded_at IS NULL",
			from.UTC(), to.UTC(), model.StatusConfirmed).
		Order("start_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return events, nil
}

// MarkEventReminded stamps reminded_at so the event is not reminded again.
func (s *Store) MarkEventReminded(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ?", id).
		UpdateColumn("reminded_at", at.UTC()).Error
}

// ListRecentEventsForUser returns up to limit of userID's most recently created events.
func (s *Store) ListRecentEventsForUser(ctx context.Context, userID string, limit int) ([]model.Event, error) {
	events := []model.Event{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return events, nil
}

// ListEventsCreatedSince returns events created at or after since. An empty
// userID selects every user.
func (s *Store) ListEventsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.Event, error) {
	events := []model.Event{}
	q := s.db.WithContext(ctx).Where("created_at >= ?", since.UTC())
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events since: %w", err)
	}
	return events, nil
}
