package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const productID = "-//capitalize-ai//calendar-assistant//EN"

// How far ahead ListUpcoming looks on CalDAV servers.
const caldavHorizon = 365 * 24 * time.Hour

// CalDAVConfig points at a CalDAV server and calendar.
type CalDAVConfig struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

// basicAuthTransport adds credentials and a user agent to each request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "calendar-assistant/1.0")
	return t.base.RoundTrip(req)
}

// CalDAVProvider stores events as iCalendar objects named <uid>.ics. The
// VEVENT UID is the remote id.
type CalDAVProvider struct {
	caldav       *caldav.Client
	webdav       *webdav.Client
	calendarPath string
}

// NewCalDAVProvider connects and resolves the target calendar. An empty
// CalendarName selects the first calendar that accepts events.
func NewCalDAVProvider(ctx context.Context, cfg CalDAVConfig) (*CalDAVProvider, error) {
	if cfg.Endpoint == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: caldav endpoint and username are required", ErrNotAuthenticated)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &basicAuthTransport{username: cfg.Username, password: cfg.Password, base: http.DefaultTransport},
	}

	cdc, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	wdc, err := webdav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create webdav client: %w", err)
	}

	p := &CalDAVProvider{caldav: cdc, webdav: wdc}
	p.calendarPath, err = p.findCalendar(ctx, cfg.CalendarName)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the provider name.
func (p *CalDAVProvider) Name() string { return "caldav" }

func (p *CalDAVProvider) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := p.caldav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := p.caldav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	calendars, err := p.caldav.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}

	for _, cal := range calendars {
		if name != "" && cal.Name == name {
			return cal.Path, nil
		}
		if name == "" && acceptsEvents(cal) {
			return cal.Path, nil
		}
	}
	if name == "" {
		return "", errors.New("no calendar accepting events found")
	}
	return "", fmt.Errorf("no calendar named %q", name)
}

func acceptsEvents(cal caldav.Calendar) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return true
	}
	for _, c := range cal.SupportedComponentSet {
		if strings.EqualFold(c, ical.CompEvent) {
			return true
		}
	}
	return false
}

func (p *CalDAVProvider) objectPath(uid string) string {
	return path.Join(p.calendarPath, uid+".ics")
}

// Create writes a new VEVENT and returns its UID.
func (p *CalDAVProvider) Create(ctx context.Context, spec EventSpec) (string, error) {
	uid := uuid.NewString()
	cal := newICalendar(eventComponent(uid, spec, nil))
	if _, err := p.caldav.PutCalendarObject(ctx, p.objectPath(uid), cal); err != nil {
		return "", fmt.Errorf("put calendar object: %w", err)
	}
	return uid, nil
}

// Update rewrites the VEVENT with the given UID. Empty optional fields keep
// their stored values.
func (p *CalDAVProvider) Update(ctx context.Context, remoteID string, spec EventSpec) error {
	obj, err := p.caldav.GetCalendarObject(ctx, p.objectPath(remoteID))
	if err != nil {
		return fmt.Errorf("get calendar object %s: %w", remoteID, err)
	}

	var existing *ical.Component
	for _, child := range obj.Data.Children {
		if child.Name == ical.CompEvent {
			existing = child
			break
		}
	}
	if existing == nil {
		return fmt.Errorf("calendar object %s has no VEVENT", remoteID)
	}

	cal := newICalendar(eventComponent(remoteID, spec, existing))
	if _, err := p.caldav.PutCalendarObject(ctx, p.objectPath(remoteID), cal); err != nil {
		return fmt.Errorf("put calendar object %s: %w", remoteID, err)
	}
	return nil
}

// Delete removes the object holding the VEVENT.
func (p *CalDAVProvider) Delete(ctx context.Context, remoteID string) error {
	if err := p.webdav.RemoveAll(ctx, p.objectPath(remoteID)); err != nil {
		return fmt.Errorf("remove calendar object %s: %w", remoteID, err)
	}
	return nil
}

// ListUpcoming queries events from now through the next year.
func (p *CalDAVProvider) ListUpcoming(ctx context.Context, limit int) ([]RemoteEvent, error) {
	now := time.Now().UTC()
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: now,
				End:   now.Add(caldavHorizon),
			}},
		},
	}

	objects, err := p.caldav.QueryCalendar(ctx, p.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var out []RemoteEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			if re, ok := remoteFromICal(ev); ok {
				out = append(out, re)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newICalendar(event *ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, event)
	return cal
}

// eventComponent builds a VEVENT from spec. When base is given, its optional
// properties survive where spec leaves them empty.
func eventComponent(uid string, spec EventSpec, base *ical.Component) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, spec.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, spec.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, spec.End.UTC())

	copyProp := func(name string) {
		if base == nil {
			return
		}
		if props, ok := base.Props[name]; ok {
			ve.Props[name] = props
		}
	}

	switch {
	case spec.Status != "":
		ve.Props.SetText(ical.PropStatus, strings.ToUpper(string(spec.Status)))
	case base != nil && base.Props.Get(ical.PropStatus) != nil:
		copyProp(ical.PropStatus)
	default:
		ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	if spec.Description != "" {
		ve.Props.SetText(ical.PropDescription, spec.Description)
	} else {
		copyProp(ical.PropDescription)
	}
	if spec.Location != "" {
		ve.Props.SetText(ical.PropLocation, spec.Location)
	} else {
		copyProp(ical.PropLocation)
	}
	if len(spec.Attendees) > 0 {
		for _, a := range spec.Attendees {
			prop := ical.NewProp(ical.PropAttendee)
			prop.Value = "mailto:" + a
			ve.Props.Add(prop)
		}
	} else {
		copyProp(ical.PropAttendee)
	}

	// VALARM mirroring the popup reminder used on other providers.
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, spec.Title)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", reminderMinutes)
	alarm.Props.Set(trigger)
	ve.Children = append(ve.Children, alarm)

	return ve
}

func remoteFromICal(ev ical.Event) (RemoteEvent, bool) {
	uid, _ := ev.Props.Text(ical.PropUID)
	if uid == "" {
		return RemoteEvent{}, false
	}
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		return RemoteEvent{}, false
	}

	re := RemoteEvent{ID: uid, Start: start.UTC().Format(time.RFC3339), Status: "confirmed"}
	re.Title, _ = ev.Props.Text(ical.PropSummary)
	re.Description, _ = ev.Props.Text(ical.PropDescription)
	re.Location, _ = ev.Props.Text(ical.PropLocation)
	if end, err := ev.DateTimeEnd(time.UTC); err == nil && !end.IsZero() {
		re.End = end.UTC().Format(time.RFC3339)
	}
	if status, _ := ev.Props.Text(ical.PropStatus); status != "" {
		re.Status = strings.ToLower(status)
	}
	return re, true
}
