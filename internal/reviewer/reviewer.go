// Package reviewer runs the periodic background jobs: reminders for events
// about to start and a recurring scheduling-insights report.
package reviewer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/metrics"
)

// Job names, used in logs and metrics.
const (
	JobReminders = "reminders"
	JobInsights  = "insights"
)

// Store is the part of the record store the reviewer reads and stamps.
type Store interface {
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]model.Event, error)
	MarkEventReminded(ctx context.Context, id string, at time.Time) error
	ListRecentEventsForUser(ctx context.Context, userID string, limit int) ([]model.Event, error)
	ListEventsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.Event, error)
}

// Analyst writes reminder text and pattern insights.
type Analyst interface {
	GenerateReminder(ctx context.Context, e model.Event, history []model.Event) string
	AnalyzePatterns(ctx context.Context, events []model.Event) model.Insights
}

// Config controls job cadence and windows.
type Config struct {
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	ReminderHistory  int
	InsightInterval  time.Duration
	InsightLookback  time.Duration
	// RunTimeout bounds a single pass.
	RunTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.ReminderInterval <= 0 {
		c.ReminderInterval = 5 * time.Minute
	}
	if c.ReminderWindow <= 0 {
		c.ReminderWindow = 30 * time.Minute
	}
	if c.ReminderHistory <= 0 {
		c.ReminderHistory = 20
	}
	if c.InsightInterval <= 0 {
		c.InsightInterval = 24 * time.Hour
	}
	if c.InsightLookback <= 0 {
		c.InsightLookback = 30 * 24 * time.Hour
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
}

// Reviewer schedules and runs the background jobs.
type Reviewer struct {
	cron     *cron.Cron
	store    Store
	analyst  Analyst
	notifier Notifier
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// New creates a reviewer. Jobs are not scheduled until Start.
func New(store Store, analyst Analyst, notifier Notifier, cfg Config, log *logger.Logger) *Reviewer {
	cfg.setDefaults()
	log = log.Named("reviewer")
	cl := cronLogger{log}
	return &Reviewer{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		store:    store,
		analyst:  analyst,
		notifier: notifier,
		cfg:      cfg,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules both jobs and starts the cron runner.
func (r *Reviewer) Start() {
	r.cron.Schedule(cron.Every(r.cfg.ReminderInterval), r.job(JobReminders, func(ctx context.Context) error {
		_, err := r.RunReminders(ctx)
		return err
	}))
	r.cron.Schedule(cron.Every(r.cfg.InsightInterval), r.job(JobInsights, func(ctx context.Context) error {
		_, err := r.RunInsights(ctx)
		return err
	}))
	r.cron.Start()

	r.logger.Info("reviewer started",
		zap.Duration("reminder_interval", r.cfg.ReminderInterval),
		zap.Duration("insight_interval", r.cfg.InsightInterval),
	)
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (r *Reviewer) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("reviewer stop timed out")
	}
}

// job wraps fn with its own timeout, logging and metrics. A failing pass
// never affects the next one.
func (r *Reviewer) job(name string, fn func(ctx context.Context) error) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			metrics.ReviewerRuns.WithLabelValues(name, "error").Inc()
			r.logger.Error("reviewer pass failed", zap.String("job", name), zap.Error(err))
			return
		}
		metrics.ReviewerRuns.WithLabelValues(name, "ok").Inc()
		r.logger.Debug("reviewer pass done", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
}

// RunReminders emits one reminder per confirmed event starting within the
// reminder window that has not been reminded yet, and returns how many were
// sent. Events whose notification fails stay eligible for the next pass.
func (r *Reviewer) RunReminders(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.store.ListDueForReminder(ctx, now, now.Add(r.cfg.ReminderWindow))
	if err != nil {
		return 0, fmt.Errorf("list due events: %w", err)
	}

	histories := make(map[string][]model.Event)
	sent := 0
	for _, ev := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		history, ok := histories[ev.UserID]
		if !ok {
			history, err = r.store.ListRecentEventsForUser(ctx, ev.UserID, r.cfg.ReminderHistory)
			if err != nil {
				r.logger.Warn("failed to load reminder history", zap.String("user_id", ev.UserID), zap.Error(err))
				history = nil
			}
			histories[ev.UserID] = history
		}

		start := ev.StartTime
		n := model.Notification{
			ID:        "reminder-" + ev.ID,
			Kind:      model.NotifyReminder,
			UserID:    ev.UserID,
			EventID:   ev.ID,
			Title:     ev.Title,
			StartTime: &start,
			Message:   r.analyst.GenerateReminder(ctx, ev, history),
			CreatedAt: now,
		}
		if err := r.notifier.Notify(ctx, n); err != nil {
			r.logger.Error("failed to deliver reminder", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		metrics.NotificationsEmitted.WithLabelValues(string(model.NotifyReminder)).Inc()

		if err := r.store.MarkEventReminded(ctx, ev.ID, now); err != nil {
			r.logger.Error("failed to stamp reminder", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// RunInsights analyzes every user's events created within the lookback
// window and emits one report. It reports false when there was nothing to
// analyze.
func (r *Reviewer) RunInsights(ctx context.Context) (bool, error) {
	now := r.now()
	events, err := r.store.ListEventsCreatedSince(ctx, "", now.Add(-r.cfg.InsightLookback))
	if err != nil {
		return false, fmt.Errorf("list recent events: %w", err)
	}
	if len(events) == 0 {
		r.logger.Debug("no recent events; skipping insights")
		return false, nil
	}

	insights := r.analyst.AnalyzePatterns(ctx, events)
	n := model.Notification{
		ID:        "insights-" + model.NewID(),
		Kind:      model.NotifyInsights,
		Insights:  &insights,
		CreatedAt: now,
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		return false, fmt.Errorf("deliver insights: %w", err)
	}
	metrics.NotificationsEmitted.WithLabelValues(string(model.NotifyInsights)).Inc()
	return true, nil
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
