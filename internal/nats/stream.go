package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/calendar-assistant/internal/model"
)

const (
	// StreamName is the name of the scheduler notification stream.
	StreamName = "SCHEDULER"

	// SubjectPrefix is the prefix for all notification subjects.
	SubjectPrefix = "sched"
)

// StreamManager publishes and reads reviewer notifications.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream creates the notification stream when it does not exist.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  time.Hour,
		Description: "Reminders and schedule insights",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// subjectToken makes s safe to use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// ReminderSubject returns the subject reminders for userID are published on.
func ReminderSubject(userID string) string {
	return fmt.Sprintf("%s.%s.reminder", SubjectPrefix, subjectToken(userID))
}

// InsightsSubject is the subject for schedule insights.
func InsightsSubject() string {
	return SubjectPrefix + ".insights"
}

// Subject returns the subject n is published on.
func Subject(n *model.Notification) string {
	if n.Kind == model.NotifyReminder {
		return ReminderSubject(n.UserID)
	}
	return InsightsSubject()
}

// Notify publishes n. The notification id doubles as the JetStream message
// id, so a retried publish within the duplicate window is dropped.
func (m *StreamManager) Notify(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	var opts []jetstream.PublishOpt
	if n.ID != "" {
		opts = append(opts, jetstream.WithMsgID(n.ID))
	}
	if _, err := m.client.JetStream().Publish(ctx, Subject(&n), data, opts...); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Recent returns the newest limit stored notifications matching filter,
// oldest first. An empty filter matches every subject of the stream.
func (m *StreamManager) Recent(ctx context.Context, filter string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		return nil, nil
	}
	all := filter == ""
	if all {
		filter = SubjectPrefix + ".>"
	}

	js := m.client.JetStream()
	stream, err := js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}
	last := info.State.LastSeq
	if info.State.Msgs == 0 || last == 0 {
		return nil, nil
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filter},
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    startSeq(last, limit, all),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	// A filtered read walks the stream up to the last sequence seen at the
	// start and keeps only the tail.
	tail := newTail(limit)
	for {
		batch, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(time.Second))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch notifications: %w", err)
		}

		var (
			got  int
			done bool
		)
		for msg := range batch.Messages() {
			got++
			if meta, err := msg.Metadata(); err == nil && meta.Sequence.Stream >= last {
				done = true
			}
			var n model.Notification
			if err := json.Unmarshal(msg.Data(), &n); err != nil {
				continue
			}
			tail.add(n)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch error: %w", err)
		}
		if done || got == 0 {
			return tail.items(), nil
		}
	}
}

const fetchBatch = 256

// startSeq is where a read of the newest limit messages begins. Only an
// unfiltered read can skip ahead, since subjects are interleaved.
func startSeq(last uint64, limit int, all bool) uint64 {
	if !all || uint64(limit) >= last {
		return 1
	}
	return last - uint64(limit) + 1
}

// tail keeps the last n notifications added.
type tail struct {
	n   int
	buf []model.Notification
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(n model.Notification) {
	t.buf = append(t.buf, n)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
}

func (t *tail) items() []model.Notification {
	return t.buf
}
