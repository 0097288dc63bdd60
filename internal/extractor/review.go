package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

const (
	reminderMaxTokens = 300
	insightsMaxTokens = 1000
	summaryMaxTokens  = 300

	// defaultTypicalHour is assumed when a user has no event history.
	defaultTypicalHour = 14
)

// NoEventsSummary is returned by Summarize for an empty calendar.
const NoEventsSummary = "You don't have any upcoming events scheduled."

const reminderPrompt = `You are an intelligent calendar assistant. Generate a smart, contextual reminder for this upcoming event.

Event: %s
Start Time: %s
Location: %s
Description: %s

User Context: User typically schedules events around %d:00

Generate a brief, helpful reminder that:
- Is personalized and contextual
- Includes relevant preparation tips
- Accounts for travel time if location is specified
- Is encouraging and friendly
- Is under 100 words

Return only the reminder text, no JSON.`

// FallbackReminder is the templated reminder used when the model is unavailable.
func FallbackReminder(e model.Event) string {
	return fmt.Sprintf("Reminder: %s coming up at %s", e.Title, e.StartTime.Format("03:04 PM"))
}

// TypicalHour is the mean start hour of history, or 14 when history is empty.
func TypicalHour(history []model.Event) int {
	if len(history) == 0 {
		return defaultTypicalHour
	}
	sum := 0
	for _, e := range history {
		sum += e.StartTime.Hour()
	}
	return sum / len(history)
}

// GenerateReminder writes a short reminder for e using the user's recent
// events as context.
func (x *Extractor) GenerateReminder(ctx context.Context, e model.Event, history []model.Event) string {
	prompt := fmt.Sprintf(reminderPrompt,
		e.Title,
		e.StartTime.Format(DraftTimeLayout),
		orDefault(model.StrVal(e.Location), "Not specified"),
		orDefault(model.StrVal(e.Description), "None"),
		TypicalHour(history),
	)

	text, ok := x.complete(ctx, x.review, "reminder", &llm.CompletionRequest{
		Model:     x.cfg.ReviewModel,
		Messages:  llm.UserPrompt(prompt),
		MaxTokens: reminderMaxTokens,
	})
	if !ok {
		return FallbackReminder(e)
	}
	return text
}

type patternSample struct {
	Title        string `json:"title"`
	DayOfWeek    string `json:"day_of_week"`
	Hour         int    `json:"hour"`
	HasLocation  bool   `json:"has_location"`
	HasAttendees bool   `json:"has_attendees"`
}

const insightsPrompt = `You are an intelligent calendar analytics assistant. Analyze this user's event patterns and provide insights.

Events from last 30 days:
%s

Analyze and provide:
1. Peak scheduling times (what days/hours they book most)
2. Meeting patterns (solo vs group, location preferences)
3. Scheduling habits (advance planning vs last-minute)
4. Productivity insights
5. Actionable suggestions to optimize their calendar

Return JSON:
{
    "insights": ["Insight about their patterns"],
    "suggestions": ["Actionable suggestion"],
    "peak_hours": [9, 14, 16],
    "peak_days": ["Monday", "Wednesday"]
}`

// AnalyzePatterns summarizes scheduling habits across events. Any failure
// yields empty insights and suggestions.
func (x *Extractor) AnalyzePatterns(ctx context.Context, events []model.Event) model.Insights {
	if len(events) == 0 {
		return model.EmptyInsights()
	}

	samples := make([]patternSample, 0, len(events))
	for _, e := range events {
		samples = append(samples, patternSample{
			Title:        e.Title,
			DayOfWeek:    e.StartTime.Weekday().String(),
			Hour:         e.StartTime.Hour(),
			HasLocation:  model.StrVal(e.Location) != "",
			HasAttendees: len(e.Attendees) > 0,
		})
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		x.log.Error("encode pattern samples", zap.Error(err))
		return model.EmptyInsights()
	}

	raw, ok := x.complete(ctx, x.review, "insights", &llm.CompletionRequest{
		Model:     x.cfg.ReviewModel,
		Messages:  llm.UserPrompt(fmt.Sprintf(insightsPrompt, data)),
		MaxTokens: insightsMaxTokens,
	})
	if !ok {
		return model.EmptyInsights()
	}

	insights, err := ParseInsights(raw)
	if err != nil {
		x.log.Warn("could not parse insights output", zap.Error(err), zap.String("raw", raw))
		return model.EmptyInsights()
	}
	return insights
}

// ParseInsights decodes the analysis JSON, tolerating code fences and prose.
func ParseInsights(raw string) (model.Insights, error) {
	span, err := JSONSpan(stripFence(raw))
	if err != nil {
		return model.Insights{}, err
	}
	var out model.Insights
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return model.Insights{}, fmt.Errorf("decode insights: %w", err)
	}
	if out.Insights == nil {
		out.Insights = []string{}
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

const summaryPrompt = `Generate a brief, natural summary of these calendar events:

%s

Keep it conversational and friendly, under 100 words. Highlight what's coming up soon.`

// Summarize describes upcoming events in a few sentences.
func (x *Extractor) Summarize(ctx context.Context, events []model.Event) string {
	if len(events) == 0 {
		return NoEventsSummary
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- %s at %s", e.Title, e.StartTime.Format("January 02, 03:04 PM")))
	}

	text, ok := x.complete(ctx, x.review, "summary", &llm.CompletionRequest{
		Model:     x.cfg.ReviewModel,
		Messages:  llm.UserPrompt(fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n"))),
		MaxTokens: summaryMaxTokens,
	})
	if !ok {
		return fmt.Sprintf("You have %d upcoming events.", len(events))
	}
	return text
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
