package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/internal/store/storetest"
)

func TestConversationMessagesInOrder(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "u1")
	require.NoError(t, err)

	for i, text := range []string{"first", "second", "third"} {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.NoError(t, s.AddMessage(ctx, &model.Message{ConversationID: conv.ID, Role: role, Content: text}))
	}

	got, err := s.GetConversation(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "first", got.Messages[0].Content)
	assert.Equal(t, "third", got.Messages[2].Content)

	_, err = s.GetConversation(ctx, "someone-else", conv.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAddMessageRejectsUnknownRole(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, "u1")
	require.NoError(t, err)

	err = s.AddMessage(ctx, &model.Message{ConversationID: conv.ID, Role: "system", Content: "x"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestDeleteConversationCascades(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "u1")
	require.NoError(t, err)
	msg := &model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: "booked"}
	require.NoError(t, s.AddMessage(ctx, msg))

	ev := &model.Event{
		UserID:         "u1",
		ConversationID: &conv.ID,
		MessageID:      &msg.ID,
		Title:          "Standup",
		StartTime:      time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, s.CreateEvent(ctx, ev))

	require.NoError(t, s.DeleteConversation(ctx, "u1", conv.ID))

	_, err = s.GetConversation(ctx, "u1", conv.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	kept, err := s.GetEvent(ctx, "u1", ev.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.ConversationID)
	assert.Nil(t, kept.MessageID)

	assert.ErrorIs(t, s.DeleteConversation(ctx, "u1", conv.ID), model.ErrNotFound)
}

func TestEventDefaultsAndRemoteIDUniqueness(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	start := time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

	a := &model.Event{UserID: "u1", Title: "A", StartTime: start}
	require.NoError(t, s.CreateEvent(ctx, a))

	got, err := s.GetEvent(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.True(t, start.Add(time.Hour).Equal(got.EndTime))
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, model.SyncPending, got.SyncStatus)
	assert.Nil(t, got.RemoteID)
	assert.Nil(t, got.SyncedAt)

	now := time.Now()
	require.NoError(t, s.MarkEventSynced(ctx, a.ID, "remote-1", now))

	synced, err := s.FindEventByRemoteID(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, synced.ID)
	assert.Equal(t, model.SyncSynced, synced.SyncStatus)
	require.NotNil(t, synced.SyncedAt)

	dup := &model.Event{UserID: "u2", Title: "B", StartTime: start, RemoteID: model.StrPtr("remote-1")}
	assert.Error(t, s.CreateEvent(ctx, dup))

	_, err = s.FindEventByRemoteID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEventRejectsUnknownStatus(t *testing.T) {
	s := storetest.New(t)
	err := s.CreateEvent(context.Background(), &model.Event{
		UserID: "u1", Title: "x", StartTime: time.Now(), Status: "postponed",
	})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestListUpcomingEvents(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []*model.Event{
		{UserID: "u1", Title: "later", StartTime: now.Add(48 * time.Hour)},
		{UserID: "u1", Title: "past", StartTime: now.Add(-48 * time.Hour)},
		{UserID: "u1", Title: "soon", StartTime: now.Add(2 * time.Hour), Status: model.StatusCancelled},
		{UserID: "u2", Title: "other user", StartTime: now.Add(time.Hour)},
	} {
		require.NoError(t, s.CreateEvent(ctx, e))
	}

	events, err := s.ListUpcomingEvents(ctx, "u1", now, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "soon", events[0].Title)
	assert.Equal(t, "later", events[1].Title)

	stale := model.SyncStale
	require.NoError(t, s.SetSyncStatus(ctx, events[1].ID, stale))
	filtered, err := s.ListUpcomingEvents(ctx, "u1", now, &stale)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "later", filtered[0].Title)

	unsynced, err := s.ListUnsyncedEvents(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unsynced, 3)
}

func TestListDueForReminder(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := &model.Event{UserID: "u1", Title: "in window", StartTime: now.Add(10 * time.Minute)}
	tooLate := &model.Event{UserID: "u1", Title: "too late", StartTime: now.Add(45 * time.Minute)}
	started := &model.Event{UserID: "u1", Title: "started", StartTime: now.Add(-time.Minute)}
	tentative := &model.Event{UserID: "u2", Title: "tentative", StartTime: now.Add(5 * time.Minute), Status: model.StatusTentative}
	for _, e := range []*model.Event{inWindow, tooLate, started, tentative} {
		require.NoError(t, s.CreateEvent(ctx, e))
	}

	due, err := s.ListDueForReminder(ctx, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inWindow.ID, due[0].ID)

	require.NoError(t, s.MarkEventReminded(ctx, inWindow.ID, now))
	due, err = s.ListDueForReminder(ctx, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRecentAndCreatedSince(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateEvent(ctx, &model.Event{UserID: "u1", Title: "e", StartTime: start}))
	}
	require.NoError(t, s.CreateEvent(ctx, &model.Event{UserID: "u2", Title: "e", StartTime: start}))

	recent, err := s.ListRecentEventsForUser(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	all, err := s.ListEventsCreatedSince(ctx, "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 6)

	mine, err := s.ListEventsCreatedSince(ctx, "u2", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := s.ListEventsCreatedSince(ctx, "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteEventScopedToUser(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	e := &model.Event{UserID: "u1", Title: "x", StartTime: time.Now()}
	require.NoError(t, s.CreateEvent(ctx, e))

	assert.ErrorIs(t, s.DeleteEvent(ctx, "u2", e.ID), model.ErrNotFound)
	require.NoError(t, s.DeleteEvent(ctx, "u1", e.ID))
	_, err := s.GetEvent(ctx, "u1", e.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPing(t *testing.T) {
	s := storetest.New(t)
	assert.NoError(t, s.Ping(context.Background()))
}
