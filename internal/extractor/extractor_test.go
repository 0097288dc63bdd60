package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

type fakeModel struct {
	reply string
	err   error
	reqs  []*llm.CompletionRequest
}

func (f *fakeModel) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply, Model: "fake"}, nil
}

func (f *fakeModel) Name() string { return "fake" }

func newExtractor(m *fakeModel) *Extractor {
	return New(m, nil, Config{Timeout: time.Second}, logger.NewNop())
}

var now = time.Date(2025, 5, 30, 9, 15, 0, 0, time.UTC)

func TestExtractTeamSyncRoundTrip(t *testing.T) {
	m := &fakeModel{reply: `Here you go:
{"response":"Booked Team sync.","events":[{"title":"Team sync","start_time":"2025-06-01 10:00:00","location":"Room A"}]}
Let me know if anything changes.`}
	x := newExtractor(m)

	res := x.Extract(context.Background(), []model.Turn{{Role: model.RoleUser, Content: "Team sync Sunday 10am in Room A"}}, now)

	assert.Equal(t, "Booked Team sync.", res.Reply)
	require.Len(t, res.Events, 1)
	d := res.Events[0]
	assert.Equal(t, "Team sync", d.Title)
	require.NotNil(t, d.Start)
	assert.True(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Equal(*d.Start))
	assert.Equal(t, "Room A", d.Location)
	assert.Nil(t, d.End)

	require.Len(t, m.reqs, 1)
	req := m.reqs[0]
	assert.Zero(t, req.Temperature)
	assert.Contains(t, req.Messages[0].Content, "2025-05-30 09:15:00")
	assert.Contains(t, req.Messages[0].Content, "USER: Team sync Sunday 10am in Room A")
}

func TestExtractTransportFailure(t *testing.T) {
	x := newExtractor(&fakeModel{err: errors.New("connection reset")})
	res := x.Extract(context.Background(), nil, now)
	assert.Equal(t, FallbackReply, res.Reply)
	assert.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
}

func TestExtractEmptyAnswer(t *testing.T) {
	x := newExtractor(&fakeModel{reply: ""})
	res := x.Extract(context.Background(), nil, now)
	assert.Equal(t, FallbackReply, res.Reply)
	assert.Empty(t, res.Events)
}

func TestExtractNoModel(t *testing.T) {
	x := New(nil, nil, Config{}, logger.NewNop())
	res := x.Extract(context.Background(), nil, now)
	assert.Equal(t, FallbackReply, res.Reply)
}

func TestExtractMalformed(t *testing.T) {
	for _, raw := range []string{
		"I would love to help!",
		`{"response": "oops", "events": [}`,
		"} backwards {",
	} {
		x := newExtractor(&fakeModel{reply: raw})
		res := x.Extract(context.Background(), nil, now)
		assert.Equal(t, ParseFailureReply, res.Reply, raw)
		assert.Empty(t, res.Events, raw)
	}
}

func TestParseExtractionEndTimes(t *testing.T) {
	raw := `{"response":"ok","events":[
		{"title":"explicit","start_time":"2025-06-01 10:00:00","end_time":"2025-06-01 12:30:00"},
		{"title":"garbled end","start_time":"2025-06-01 10:00:00","end_time":"noonish"},
		{"title":"null end","start_time":"2025-06-01 10:00:00","end_time":null},
		{"title":"no end","start_time":"2025-06-01 10:00:00"},
		{"title":"garbled start","start_time":"tomorrow-ish","end_time":"later"}
	]}`
	res, err := ParseExtraction(raw, time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Events, 5)

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, start.Add(150*time.Minute).Equal(*res.Events[0].End))
	assert.True(t, start.Add(time.Hour).Equal(*res.Events[1].End))
	assert.Equal(t, "noonish", res.Events[1].EndRaw)
	assert.True(t, start.Add(time.Hour).Equal(*res.Events[2].End))
	assert.Nil(t, res.Events[3].End)

	garbled := res.Events[4]
	assert.Nil(t, garbled.Start)
	assert.Equal(t, "tomorrow-ish", garbled.StartRaw)
	assert.Nil(t, garbled.End)
}

func TestParseExtractionAttendees(t *testing.T) {
	res, err := ParseExtraction(`{"response":"ok","events":[
		{"title":"a","start_time":"2025-06-01 10:00:00","attendees":[" x@a.io ",""]},
		{"title":"b","start_time":"2025-06-01 10:00:00","attendees":"y@a.io, z@a.io"}
	]}`, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []string{"x@a.io"}, res.Events[0].Attendees)
	assert.Equal(t, []string{"y@a.io", "z@a.io"}, res.Events[1].Attendees)
}

func TestParseExtractionIgnoresOddAttendees(t *testing.T) {
	res, err := ParseExtraction(`{"response":"Booked.","events":[
		{"title":"Team sync","start_time":"2025-06-01 10:00:00","attendees":[{"email":"a@x.io"}, 42, "b@x.io"]},
		{"title":"1:1","start_time":"2025-06-02 10:00:00","attendees":{"email":"c@x.io"}}
	]}`, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Booked.", res.Reply)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Team sync", res.Events[0].Title)
	assert.Equal(t, []string{"b@x.io"}, res.Events[0].Attendees)
	assert.Empty(t, res.Events[1].Attendees)
	require.NotNil(t, res.Events[1].Start)
}

func TestParseExtractionMissingReply(t *testing.T) {
	res, err := ParseExtraction(`{"events":[]}`, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, res.Reply)
}

func TestGenerateReminder(t *testing.T) {
	e := model.Event{Title: "Dentist", StartTime: time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC)}
	history := []model.Event{
		{StartTime: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)},
		{StartTime: time.Date(2025, 5, 2, 11, 0, 0, 0, time.UTC)},
	}

	m := &fakeModel{reply: "Leave 15 minutes early for the dentist."}
	assert.Equal(t, "Leave 15 minutes early for the dentist.", newExtractor(m).GenerateReminder(context.Background(), e, history))
	assert.Contains(t, m.reqs[0].Messages[0].Content, "around 10:00")
	assert.Contains(t, m.reqs[0].Messages[0].Content, "Location: Not specified")

	failing := newExtractor(&fakeModel{err: errors.New("timeout")})
	assert.Equal(t, "Reminder: Dentist coming up at 03:04 PM", failing.GenerateReminder(context.Background(), e, nil))
}

func TestTypicalHour(t *testing.T) {
	assert.Equal(t, 14, TypicalHour(nil))
}

func TestAnalyzePatterns(t *testing.T) {
	events := []model.Event{{
		Title:     "Gym",
		StartTime: time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC),
		Location:  model.StrPtr("Gym"),
	}}

	m := &fakeModel{reply: "```json\n{\"insights\":[\"Mornings\"],\"suggestions\":[\"Keep it up\"],\"peak_hours\":[7],\"peak_days\":[\"Monday\"]}\n```"}
	got := newExtractor(m).AnalyzePatterns(context.Background(), events)
	assert.Equal(t, []string{"Mornings"}, got.Insights)
	assert.Equal(t, []int{7}, got.PeakHours)
	assert.Equal(t, []string{"Monday"}, got.PeakDays)
	assert.Contains(t, m.reqs[0].Messages[0].Content, `"day_of_week": "Monday"`)
	assert.Contains(t, m.reqs[0].Messages[0].Content, `"has_location": true`)

	bad := newExtractor(&fakeModel{reply: "no json here"}).AnalyzePatterns(context.Background(), events)
	assert.Equal(t, model.EmptyInsights(), bad)

	none := newExtractor(&fakeModel{reply: "unused"}).AnalyzePatterns(context.Background(), nil)
	assert.Equal(t, model.EmptyInsights(), none)
}

func TestParseInsightsFillsEmptyLists(t *testing.T) {
	got, err := ParseInsights(`{"peak_days":["Friday"]}`)
	require.NoError(t, err)
	assert.NotNil(t, got.Insights)
	assert.NotNil(t, got.Suggestions)
}

func TestSummarize(t *testing.T) {
	m := &fakeModel{reply: "Busy week ahead."}
	x := newExtractor(m)

	assert.Equal(t, NoEventsSummary, x.Summarize(context.Background(), nil))
	assert.Empty(t, m.reqs)

	events := []model.Event{{Title: "A", StartTime: now}, {Title: "B", StartTime: now}}
	assert.Equal(t, "Busy week ahead.", x.Summarize(context.Background(), events))
	assert.True(t, strings.Contains(m.reqs[0].Messages[0].Content, "- A at May 30, 09:15 AM"))

	failing := newExtractor(&fakeModel{err: errors.New("boom")})
	assert.Equal(t, "You have 2 upcoming events.", failing.Summarize(context.Background(), events))
}
