package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Default popup reminder attached to created events.
const reminderMinutes = 10

// GoogleConfig locates OAuth credentials and the target calendar.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	CredentialsFile string
	TokenFile       string
	CalendarID      string
}

// GoogleProvider talks to the Google Calendar API.
type GoogleProvider struct {
	service    *gcal.Service
	calendarID string
}

// NewGoogleProvider builds an authenticated provider from the saved token.
// A missing token yields ErrNotAuthenticated.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	oauthCfg, err := OAuthConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load token %s: %v (run `calsync auth`)", ErrNotAuthenticated, cfg.TokenFile, err)
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewGoogleProviderWithService(svc, cfg.CalendarID), nil
}

// NewGoogleProviderWithService wraps an existing service.
func NewGoogleProviderWithService(svc *gcal.Service, calendarID string) *GoogleProvider {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleProvider{service: svc, calendarID: calendarID}
}

// Name returns the provider name.
func (g *GoogleProvider) Name() string { return "google" }

func googleTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.UTC().Format(time.RFC3339), TimeZone: "UTC"}
}

func googleAttendees(emails []string) []*gcal.EventAttendee {
	out := make([]*gcal.EventAttendee, 0, len(emails))
	for _, e := range emails {
		out = append(out, &gcal.EventAttendee{Email: e})
	}
	return out
}

// Create inserts an event and returns its id.
func (g *GoogleProvider) Create(ctx context.Context, spec EventSpec) (string, error) {
	ev := &gcal.Event{
		Summary:     spec.Title,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       googleTime(spec.Start),
		End:         googleTime(spec.End),
		Attendees:   googleAttendees(spec.Attendees),
		Status:      string(spec.Status),
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       []*gcal.EventReminder{{Method: "popup", Minutes: reminderMinutes}},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := g.service.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// Update fetches the event, applies spec and writes it back. Empty optional
// fields keep their remote values.
func (g *GoogleProvider) Update(ctx context.Context, remoteID string, spec EventSpec) error {
	ev, err := g.service.Events.Get(g.calendarID, remoteID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get event %s: %w", remoteID, err)
	}

	ev.Summary = spec.Title
	ev.Start = googleTime(spec.Start)
	ev.End = googleTime(spec.End)
	if spec.Description != "" {
		ev.Description = spec.Description
	}
	if spec.Location != "" {
		ev.Location = spec.Location
	}
	if len(spec.Attendees) > 0 {
		ev.Attendees = googleAttendees(spec.Attendees)
	}
	if spec.Status != "" {
		ev.Status = string(spec.Status)
	}

	if _, err := g.service.Events.Update(g.calendarID, remoteID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", remoteID, err)
	}
	return nil
}

// Delete removes the event.
func (g *GoogleProvider) Delete(ctx context.Context, remoteID string) error {
	if err := g.service.Events.Delete(g.calendarID, remoteID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", remoteID, err)
	}
	return nil
}

// ListUpcoming returns up to limit events starting from now, expanded and
// ordered by start time.
func (g *GoogleProvider) ListUpcoming(ctx context.Context, limit int) ([]RemoteEvent, error) {
	events, err := g.service.Events.List(g.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(int64(limit)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return toRemoteEvents(events.Items), nil
}

func toRemoteEvents(items []*gcal.Event) []RemoteEvent {
	out := make([]RemoteEvent, 0, len(items))
	for _, item := range items {
		if item.Start == nil {
			continue
		}
		status := item.Status
		if status == "" {
			status = "confirmed"
		}
		out = append(out, RemoteEvent{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Start:       eventDateTime(item.Start),
			End:         eventDateTime(item.End),
			Status:      status,
		})
	}
	return out
}

func eventDateTime(dt *gcal.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

// OAuthConfig reads OAuth client settings, preferring explicit client id and
// secret over the credentials file.
func OAuthConfig(cfg GoogleConfig) (*oauth2.Config, error) {
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{gcal.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s not found; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or provide the file", cfg.CredentialsFile)
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	oauthCfg.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return oauthCfg, nil
}

// SaveToken writes an OAuth token as JSON.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}
