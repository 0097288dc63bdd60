package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

// Replies used when extraction cannot produce one.
const (
	FallbackReply     = "I'm here to help you schedule events and manage your calendar. What would you like to do?"
	ParseFailureReply = "Sorry, I couldn't understand that. Can you rephrase?"
)

// DraftTimeLayout is the only layout the model is asked to produce.
const DraftTimeLayout = "2006-01-02 15:04:05"

const extractionMaxTokens = 1500

// EventDraft is an unvalidated event proposed by the model. Start and End
// are nil when the model's value did not parse; the raw text is kept.
type EventDraft struct {
	Title       string
	Start       *time.Time
	StartRaw    string
	End         *time.Time
	EndRaw      string
	Description string
	Location    string
	Attendees   []string
}

// Result is the outcome of one extraction.
type Result struct {
	Reply  string
	Events []EventDraft
}

const extractionPrompt = `You are a helpful AI scheduling assistant. The current date/time is %s.

Analyze this conversation and:
1) Extract any events the user wants to schedule. Resolve relative dates such as "tomorrow" or "next Friday" against the current date/time.
2) Reply naturally to the user.
3) Return ONLY a valid JSON object.

Format:
{
  "response": "string",
  "events": [
    {
      "title": "string",
      "start_time": "YYYY-MM-DD HH:MM:SS",
      "end_time": "YYYY-MM-DD HH:MM:SS",
      "description": "string",
      "location": "string",
      "attendees": ["email@example.com"]
    }
  ]
}

Only "title" and "start_time" are required for an event. Use an empty "events" list when nothing should be scheduled.

Conversation:
%s

Example:
{"response":"Sure! I scheduled it.","events":[{"title":"Team meeting","start_time":"2025-12-04 14:00:00"}]}`

// Extract asks the extraction model for a reply and event drafts for the
// conversation so far. It never fails: transport problems yield FallbackReply
// and unparsable output yields ParseFailureReply, both with no events.
func (x *Extractor) Extract(ctx context.Context, turns []model.Turn, now time.Time) Result {
	prompt := fmt.Sprintf(extractionPrompt, now.Format(DraftTimeLayout), renderTurns(turns))

	raw, ok := x.complete(ctx, x.extraction, "extract", &llm.CompletionRequest{
		Model:       x.cfg.ExtractionModel,
		Messages:    llm.UserPrompt(prompt),
		MaxTokens:   extractionMaxTokens,
		Temperature: 0,
	})
	if !ok {
		return Result{Reply: FallbackReply, Events: []EventDraft{}}
	}

	res, err := ParseExtraction(raw, now.Location())
	if err != nil {
		x.log.Warn("could not parse extraction output", zap.Error(err), zap.String("raw", raw))
		return Result{Reply: ParseFailureReply, Events: []EventDraft{}}
	}
	return res
}

func renderTurns(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// extractionPayload mirrors the JSON the model is asked for.
type extractionPayload struct {
	Response string         `json:"response"`
	Events   []draftPayload `json:"events"`
}

type draftPayload struct {
	Title       string          `json:"title"`
	StartTime   *string         `json:"start_time"`
	EndTime     json.RawMessage `json:"end_time"`
	Description *string         `json:"description"`
	Location    *string         `json:"location"`
	Attendees   stringList      `json:"attendees"`
}

// stringList accepts a JSON array or a single comma separated string.
// Non-string array entries are dropped.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var arr []any
	if err := json.Unmarshal(b, &arr); err == nil {
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Anything else (a number, an object) is not an attendee list.
		*l = nil
		return nil
	}
	*l = strings.Split(s, ",")
	return nil
}

var errNoJSON = errors.New("no JSON object in model output")

// JSONSpan returns the text between the first '{' and the last '}'.
func JSONSpan(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return raw[start : end+1], nil
}

// ParseExtraction decodes model output into a Result. Times without a zone
// are read in loc.
func ParseExtraction(raw string, loc *time.Location) (Result, error) {
	span, err := JSONSpan(raw)
	if err != nil {
		return Result{}, err
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return Result{}, fmt.Errorf("decode extraction: %w", err)
	}

	res := Result{
		Reply:  strings.TrimSpace(payload.Response),
		Events: make([]EventDraft, 0, len(payload.Events)),
	}
	if res.Reply == "" {
		res.Reply = FallbackReply
	}
	for _, p := range payload.Events {
		res.Events = append(res.Events, p.draft(loc))
	}
	return res, nil
}

func (p draftPayload) draft(loc *time.Location) EventDraft {
	d := EventDraft{
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(model.StrVal(p.Description)),
		Location:    strings.TrimSpace(model.StrVal(p.Location)),
		Attendees:   model.CleanAttendees(p.Attendees),
	}

	if p.StartTime != nil {
		d.StartRaw = *p.StartTime
		if t, err := time.ParseInLocation(DraftTimeLayout, strings.TrimSpace(*p.StartTime), loc); err == nil {
			d.Start = &t
		}
	}

	// end_time present in any form: parse it, else default to start+1h.
	if len(p.EndTime) > 0 {
		var s string
		_ = json.Unmarshal(p.EndTime, &s)
		d.EndRaw = s
		if t, err := time.ParseInLocation(DraftTimeLayout, strings.TrimSpace(s), loc); err == nil {
			d.End = &t
		} else if d.Start != nil {
			end := d.Start.Add(model.DefaultDuration)
			d.End = &end
		}
	}
	return d
}
