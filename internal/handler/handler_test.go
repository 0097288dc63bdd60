package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/calendar-assistant/internal/calendar"
	"github.com/capitalize-ai/calendar-assistant/internal/extractor"
	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/internal/service"
	"github.com/capitalize-ai/calendar-assistant/internal/store/storetest"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

type stubCalendar struct {
	configured bool
	remote     []calendar.RemoteEvent
	deletes    int
}

func (s *stubCalendar) Configured() bool     { return s.configured }
func (s *stubCalendar) ProviderName() string { return "google" }
func (s *stubCalendar) CreateEvent(context.Context, calendar.EventSpec) string {
	if !s.configured {
		return ""
	}
	return "g-" + model.NewID()
}
func (s *stubCalendar) UpdateEvent(context.Context, string, calendar.EventSpec) bool {
	return s.configured
}
func (s *stubCalendar) DeleteEvent(context.Context, string) bool {
	s.deletes++
	return s.configured
}
func (s *stubCalendar) ListUpcomingEvents(context.Context, int) []calendar.RemoteEvent {
	return s.remote
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, turns []model.Turn, now time.Time) extractor.Result {
	last := turns[len(turns)-1].Content
	if strings.Contains(last, "meeting") {
		start := now.Add(24 * time.Hour).UTC().Truncate(time.Second)
		return extractor.Result{
			Reply:  "Scheduled your meeting.",
			Events: []extractor.EventDraft{{Title: "Meeting", Start: &start}},
		}
	}
	return extractor.Result{Reply: extractor.FallbackReply}
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzePatterns(context.Context, []model.Event) model.Insights {
	return model.Insights{Insights: []string{"ok"}, Suggestions: []string{}}
}

func (stubAnalyzer) Summarize(_ context.Context, events []model.Event) string {
	return fmt.Sprintf("events: %d", len(events))
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, _ string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return s.text, s.err
}

type testServer struct {
	handler http.Handler
	cal     *stubCalendar
}

func newTestServer(t *testing.T, cfg RouterConfig, tr *stubTranscriber) *testServer {
	t.Helper()
	log := logger.NewNop()
	st := storetest.New(t)
	cal := &stubCalendar{configured: true}

	events := service.NewEventService(st, cal, stubAnalyzer{}, service.EventConfig{}, log)
	chat := service.NewChatService(st, stubExtractor{}, events, log)
	convs := service.NewConversationService(st, log)

	var transcriber llm.Transcriber
	if tr != nil {
		transcriber = *tr
	}

	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "default_user"
	}
	h := Handlers{
		Health:        NewHealthHandler(map[string]Pinger{"db": st}),
		Chat:          NewChatHandler(chat, transcriber, log),
		Conversations: NewConversationHandler(convs, log),
		Events:        NewEventHandler(events, log),
	}
	return &testServer{handler: NewRouter(cfg, h, log), cal: cal}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	root := decode[map[string]interface{}](t, rec)
	assert.Equal(t, Version, root["version"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{"nats": failingPinger{}, "skipped": nil})
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "nats: down", decode[map[string]string](t, rec)["reason"])
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)

	rec := s.do(t, http.MethodPost, "/chat", map[string]string{"message": "book a meeting tomorrow"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[model.ChatResponse](t, rec)
	assert.Equal(t, "Scheduled your meeting.", resp.AssistantMessage.Content)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, time.Hour, resp.Events[0].EndTime.Sub(resp.Events[0].StartTime))
	assert.Equal(t, model.SyncSynced, resp.Events[0].SyncStatus)
	assert.Equal(t, "default_user", resp.Events[0].UserID)

	rec = s.do(t, http.MethodPost, "/chat", map[string]interface{}{"message": "thanks", "conversation_id": resp.ConversationID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.ChatResponse](t, rec).Events)

	rec = s.do(t, http.MethodGet, "/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decode[model.Conversation](t, rec)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, conv.Messages[3].Role)

	rec = s.do(t, http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Conversation](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Conversation deleted", decode[map[string]string](t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/conversations/"+resp.ConversationID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/events/"+resp.Events[0].ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatErrors(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)

	rec := s.do(t, http.MethodPost, "/chat", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/chat", map[string]string{"message": "hi", "conversation_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/chat", map[string]string{"message": "hi", "conversation_id": model.NewID()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = s.do(t, http.MethodGet, "/conversations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func voiceRequest(t *testing.T, withFile bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withFile {
		fw, err := mw.CreateFormFile("audio", "note.webm")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("fake audio"))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/chat/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestVoice(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, voiceRequest(t, true))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s = newTestServer(t, RouterConfig{}, &stubTranscriber{text: "  "})
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, voiceRequest(t, true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not transcribe audio", decode[map[string]string](t, rec)["error"])

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, voiceRequest(t, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, RouterConfig{}, &stubTranscriber{text: "set up a meeting"})
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, voiceRequest(t, true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[model.ChatResponse](t, rec)
	assert.Equal(t, "set up a meeting", resp.Message.Content)
	assert.Len(t, resp.Events, 1)
}

func TestEventsCRUD(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)
	start := time.Now().UTC().Add(48 * time.Hour).Format("2006-01-02 15:04:05")

	rec := s.do(t, http.MethodPost, "/events", map[string]interface{}{
		"title":      "Dentist",
		"start_time": start,
		"attendees":  []string{"a@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[model.Event](t, rec)
	assert.Equal(t, model.StatusConfirmed, ev.Status)
	require.NotNil(t, ev.RemoteID)

	rec = s.do(t, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Event](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/events?sync_status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Event](t, rec))

	rec = s.do(t, http.MethodGet, "/events?sync_status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/events/"+ev.ID, map[string]interface{}{
		"title":      "Dentist (moved)",
		"start_time": start,
		"status":     "tentative",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Event](t, rec)
	assert.Equal(t, "Dentist (moved)", updated.Title)
	assert.Equal(t, model.StatusTentative, updated.Status)
	assert.Empty(t, updated.Attendees)

	rec = s.do(t, http.MethodPut, "/events/"+ev.ID, map[string]interface{}{"title": "x", "start_time": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/events/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "events: 0", decode[map[string]string](t, rec)["summary"])

	rec = s.do(t, http.MethodGet, "/events/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ok"}, decode[model.Insights](t, rec).Insights)

	rec = s.do(t, http.MethodDelete, "/events/"+ev.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.cal.deletes)

	rec = s.do(t, http.MethodGet, "/events/"+ev.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Event not found", decode[map[string]string](t, rec)["error"])
}

func TestSyncCalendar(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, nil)
	s.cal.remote = []calendar.RemoteEvent{
		{ID: "r1", Title: "Imported", Start: "2030-05-01T10:00:00Z", End: "2030-05-01T11:00:00Z"},
	}

	rec := s.do(t, http.MethodPost, "/sync-calendar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[syncResponse](t, rec)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Synced 1 events from Google Calendar", body.Message)

	rec = s.do(t, http.MethodPost, "/sync-calendar", nil)
	assert.Equal(t, 0, decode[syncResponse](t, rec).Count)

	s.cal.configured = false
	rec = s.do(t, http.MethodPost, "/sync-calendar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[syncResponse](t, rec)
	assert.Zero(t, body.Count)
	assert.Equal(t, "Sync failed - Google Calendar not configured", body.Message)
}

func TestAuthEnabled(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, RouterConfig{AuthEnabled: true, JWTSecret: secret}, nil)

	rec := s.do(t, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/events", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/chat", map[string]string{"message": "a meeting please"}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[model.ChatResponse](t, rec)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "alice", resp.Events[0].UserID)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRateLimit(t *testing.T) {
	s := newTestServer(t, RouterConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute}, nil)

	rec := s.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello again"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
