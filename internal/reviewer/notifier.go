package reviewer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// Notifier delivers reviewer output.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.Named("notify")}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n model.Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("notification_id", n.ID),
	}
	if n.UserID != "" {
		fields = append(fields, zap.String("user_id", n.UserID))
	}
	if n.EventID != "" {
		fields = append(fields, zap.String("event_id", n.EventID), zap.String("title", n.Title))
	}
	if n.Message != "" {
		fields = append(fields, zap.String("message", n.Message))
	}
	if n.Insights != nil {
		fields = append(fields,
			zap.Strings("insights", n.Insights.Insights),
			zap.Strings("suggestions", n.Insights.Suggestions),
		)
	}
	l.logger.Info("notification", fields...)
	return nil
}

// MultiNotifier fans a notification out to several notifiers. It fails only
// when every notifier fails; partial failures are logged.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *logger.Logger
}

// NewMultiNotifier creates a fan-out notifier. Nil entries are ignored.
func NewMultiNotifier(log *logger.Logger, notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{logger: log.Named("notify")}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify implements Notifier.
func (m *MultiNotifier) Notify(ctx context.Context, n model.Notification) error {
	if len(m.notifiers) == 0 {
		return nil
	}
	var errs []error
	for _, target := range m.notifiers {
		if err := target.Notify(ctx, n); err != nil {
			m.logger.Warn("notifier failed",
				zap.String("kind", string(n.Kind)),
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.notifiers) {
		return errors.Join(errs...)
	}
	return nil
}
