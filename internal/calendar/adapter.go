package calendar

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/metrics"
	"github.com/capitalize-ai/calendar-assistant/pkg/tracing"
)

const defaultTimeout = 15 * time.Second

// Adapter is the remote calendar boundary used by the rest of the service.
// A nil provider behaves as an unauthenticated calendar.
type Adapter struct {
	provider Provider
	timeout  time.Duration
	log      *logger.Logger
}

// NewAdapter wraps p. Each remote call is bounded by timeout.
func NewAdapter(p Provider, timeout time.Duration, log *logger.Logger) *Adapter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{provider: p, timeout: timeout, log: log.Named("calendar")}
}

// Configured reports whether a provider is attached.
func (a *Adapter) Configured() bool {
	return a != nil && a.provider != nil
}

// ProviderName names the attached provider, or "none".
func (a *Adapter) ProviderName() string {
	if !a.Configured() {
		return "none"
	}
	return a.provider.Name()
}

// call runs fn with its own deadline, span and metrics. Panics are turned
// into errors.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	if !a.Configured() {
		metrics.RecordCalendarOp(op, false)
		return ErrNotAuthenticated
	}

	ctx, span := tracing.Start(ctx, "calendar."+op, attribute.String("calendar.provider", a.provider.Name()))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("calendar %s panicked: %v", op, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		metrics.RecordCalendarOp(op, err == nil)
	}()

	return fn(ctx)
}

// CreateEvent pushes a new event and returns its remote id, or "" when the
// event could not be created.
func (a *Adapter) CreateEvent(ctx context.Context, spec EventSpec) string {
	spec.End = model.EndOrDefault(spec.Start, spec.End)

	var id string
	err := a.call(ctx, "create", func(ctx context.Context) error {
		var err error
		id, err = a.provider.Create(ctx, spec)
		return err
	})
	if err != nil {
		a.log.Warn("remote create failed", zap.String("title", spec.Title), zap.Error(err))
		return ""
	}
	a.log.Info("remote event created", zap.String("title", spec.Title), zap.String("remote_id", id))
	return id
}

// UpdateEvent overwrites the remote event and reports success.
func (a *Adapter) UpdateEvent(ctx context.Context, remoteID string, spec EventSpec) bool {
	spec.End = model.EndOrDefault(spec.Start, spec.End)

	err := a.call(ctx, "update", func(ctx context.Context) error {
		return a.provider.Update(ctx, remoteID, spec)
	})
	if err != nil {
		a.log.Warn("remote update failed", zap.String("remote_id", remoteID), zap.Error(err))
		return false
	}
	return true
}

// DeleteEvent removes the remote event and reports success.
func (a *Adapter) DeleteEvent(ctx context.Context, remoteID string) bool {
	err := a.call(ctx, "delete", func(ctx context.Context) error {
		return a.provider.Delete(ctx, remoteID)
	})
	if err != nil {
		a.log.Warn("remote delete failed", zap.String("remote_id", remoteID), zap.Error(err))
		return false
	}
	return true
}

// ListUpcomingEvents returns up to limit future remote events, or an empty
// list on failure.
func (a *Adapter) ListUpcomingEvents(ctx context.Context, limit int) []RemoteEvent {
	var events []RemoteEvent
	err := a.call(ctx, "list", func(ctx context.Context) error {
		var err error
		events, err = a.provider.ListUpcoming(ctx, limit)
		return err
	})
	if err != nil {
		a.log.Warn("remote list failed", zap.Error(err))
		return []RemoteEvent{}
	}
	if events == nil {
		events = []RemoteEvent{}
	}
	return events
}
