package calendar

import (
	"bytes"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

func TestEventComponentRoundTrip(t *testing.T) {
	spec := EventSpec{
		Title:       "Team sync",
		Start:       start,
		End:         start.Add(time.Hour),
		Location:    "Room A",
		Description: "weekly",
		Attendees:   []string{"a@example.com", "b@example.com"},
	}
	cal := newICalendar(eventComponent("uid-1", spec, nil))

	var buf bytes.Buffer
	require.NoError(t, ical.NewEncoder(&buf).Encode(cal))
	assert.Contains(t, buf.String(), "ATTENDEE:mailto:a@example.com")
	assert.Contains(t, buf.String(), "TRIGGER:-PT10M")

	decoded, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	events := decoded.Events()
	require.Len(t, events, 1)

	re, ok := remoteFromICal(events[0])
	require.True(t, ok)
	assert.Equal(t, "uid-1", re.ID)
	assert.Equal(t, "Team sync", re.Title)
	assert.Equal(t, "Room A", re.Location)
	assert.Equal(t, "2025-06-01T10:00:00Z", re.Start)
	assert.Equal(t, "2025-06-01T11:00:00Z", re.End)
	assert.Equal(t, "confirmed", re.Status)
}

func TestEventComponentKeepsBaseProps(t *testing.T) {
	base := eventComponent("uid-1", EventSpec{
		Title: "old", Start: start, End: start.Add(time.Hour), Location: "Room B", Description: "keep me",
	}, nil)

	updated := eventComponent("uid-1", EventSpec{Title: "new", Start: start, End: start.Add(time.Hour)}, base)

	loc, _ := updated.Props.Text(ical.PropLocation)
	desc, _ := updated.Props.Text(ical.PropDescription)
	title, _ := updated.Props.Text(ical.PropSummary)
	assert.Equal(t, "Room B", loc)
	assert.Equal(t, "keep me", desc)
	assert.Equal(t, "new", title)
}

func TestRemoteFromICalSkipsEventsWithoutUID(t *testing.T) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	_, ok := remoteFromICal(ical.Event{Component: ve})
	assert.False(t, ok)
}

func TestEventComponentStatus(t *testing.T) {
	status := func(c *ical.Component) string {
		s, _ := c.Props.Text(ical.PropStatus)
		return s
	}

	ev := &model.Event{Title: "Maybe", StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusTentative}
	tentative := eventComponent("uid-1", SpecFromEvent(ev), nil)
	assert.Equal(t, "TENTATIVE", status(tentative))

	re, ok := remoteFromICal(ical.Event{Component: tentative})
	require.True(t, ok)
	assert.Equal(t, "tentative", re.Status)

	kept := eventComponent("uid-1", EventSpec{Title: "Maybe", Start: start, End: start.Add(time.Hour)}, tentative)
	assert.Equal(t, "TENTATIVE", status(kept))

	cancelled := eventComponent("uid-1", EventSpec{
		Title: "Off", Start: start, End: start.Add(time.Hour), Status: model.StatusCancelled,
	}, tentative)
	assert.Equal(t, "CANCELLED", status(cancelled))

	fresh := eventComponent("uid-2", EventSpec{Title: "New", Start: start, End: start.Add(time.Hour)}, nil)
	assert.Equal(t, "CONFIRMED", status(fresh))
}
