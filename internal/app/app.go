// Package app wires the assistant's components from configuration. It is
// shared by the API server and the calsync CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/calendar"
	"github.com/capitalize-ai/calendar-assistant/internal/config"
	"github.com/capitalize-ai/calendar-assistant/internal/extractor"
	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	natsclient "github.com/capitalize-ai/calendar-assistant/internal/nats"
	"github.com/capitalize-ai/calendar-assistant/internal/reviewer"
	"github.com/capitalize-ai/calendar-assistant/internal/service"
	"github.com/capitalize-ai/calendar-assistant/internal/store"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// App holds the wired components.
type App struct {
	Config        *config.Config
	Store         *store.Store
	Calendar      *calendar.Adapter
	Extractor     *extractor.Extractor
	Transcriber   llm.Transcriber
	Events        *service.EventService
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Reviewer      *reviewer.Reviewer
	NATS          *natsclient.Client
	Streams       *natsclient.StreamManager

	logger *logger.Logger
}

// New opens the store and builds every component. Missing LLM keys, calendar
// credentials or NATS only degrade features; a store failure is fatal.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{Config: cfg, Store: st, logger: log}

	extraction, err := llm.Select(llm.Provider(cfg.DefaultLLM), cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)
	if err != nil {
		log.Warn("extraction model unavailable", zap.Error(err))
		extraction = nil
	}
	review, err := llm.Select(llm.Provider(cfg.ReviewLLM), cfg.OpenAIAPIKey, cfg.AnthropicAPIKey)
	if err != nil {
		log.Warn("review model unavailable", zap.Error(err))
		review = nil
	}
	if extraction == nil {
		log.Warn("no LLM API key configured; chat replies will use the fallback message")
	}
	a.Extractor = extractor.New(extraction, review, extractor.Config{
		ExtractionModel: cfg.ExtractionModel,
		ReviewModel:     cfg.ReviewModel,
		Timeout:         cfg.LLMTimeout,
	}, log)

	if cfg.OpenAIAPIKey != "" {
		if oc, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey); err == nil {
			a.Transcriber = oc
		}
	}

	a.Calendar = calendar.NewAdapter(newProvider(ctx, cfg, log), cfg.CalendarTimeout, log)

	a.Events = service.NewEventService(st, a.Calendar, a.Extractor, service.EventConfig{
		SyncLimit:       cfg.SyncLimit,
		InsightLookback: cfg.InsightLookback,
	}, log)
	a.Chat = service.NewChatService(st, a.Extractor, a.Events, log)
	a.Conversations = service.NewConversationService(st, log)

	notifier := reviewer.Notifier(reviewer.NewLogNotifier(log))
	if cfg.NATSURL != "" {
		if err := a.connectNATS(ctx); err != nil {
			log.Warn("NATS unavailable; notifications will only be logged", zap.Error(err))
		} else {
			notifier = reviewer.NewMultiNotifier(log, notifier, a.Streams)
		}
	}

	a.Reviewer = reviewer.New(st, a.Extractor, notifier, reviewer.Config{
		ReminderInterval: cfg.ReminderInterval,
		ReminderWindow:   cfg.ReminderWindow,
		ReminderHistory:  cfg.ReminderHistory,
		InsightInterval:  cfg.InsightInterval,
		InsightLookback:  cfg.InsightLookback,
	}, log)

	return a, nil
}

func (a *App) connectNATS(ctx context.Context) error {
	nc, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      a.Config.NATSURL,
		CAFile:   a.Config.NATSCAFile,
		CertFile: a.Config.NATSCertFile,
		KeyFile:  a.Config.NATSKeyFile,
		Token:    a.Config.NATSToken,
	}, a.logger)
	if err != nil {
		return err
	}
	streams := natsclient.NewStreamManager(nc)
	if err := streams.EnsureStream(ctx); err != nil {
		nc.Close()
		return err
	}
	a.NATS = nc
	a.Streams = streams
	return nil
}

// newProvider returns the configured calendar provider, or nil when none is
// configured or it cannot authenticate.
func newProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) calendar.Provider {
	switch cfg.CalendarProvider {
	case config.CalendarGoogle:
		p, err := calendar.NewGoogleProvider(ctx, GoogleConfig(cfg))
		if err != nil {
			log.Warn("Google Calendar not configured; events stay local", zap.Error(err))
			return nil
		}
		return p
	case config.CalendarCalDAV:
		p, err := calendar.NewCalDAVProvider(ctx, calendar.CalDAVConfig{
			Endpoint:     cfg.CalDAVEndpoint,
			Username:     cfg.CalDAVUsername,
			Password:     cfg.CalDAVPassword,
			CalendarName: cfg.CalDAVCalendarName,
		})
		if err != nil {
			log.Warn("CalDAV calendar not configured; events stay local", zap.Error(err))
			return nil
		}
		return p
	default:
		return nil
	}
}

// GoogleConfig extracts the Google Calendar settings.
func GoogleConfig(cfg *config.Config) calendar.GoogleConfig {
	return calendar.GoogleConfig{
		ClientID:        cfg.GoogleClientID,
		ClientSecret:    cfg.GoogleClientSecret,
		CredentialsFile: cfg.GoogleCredentialsFile,
		TokenFile:       cfg.GoogleTokenFile,
		CalendarID:      cfg.CalendarID,
	}
}

// Close releases the store and the NATS connection.
func (a *App) Close() {
	a.NATS.Close()
	if err := a.Store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
}
