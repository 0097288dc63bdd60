package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/calendar-assistant/internal/middleware"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// RouterConfig carries the request-surface settings.
type RouterConfig struct {
	AuthEnabled       bool
	JWTSecret         string
	DefaultUserID     string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health        *HealthHandler
	Chat          *ChatHandler
	Conversations *ConversationHandler
	Events        *EventHandler
}

// NewRouter builds the HTTP surface.
func NewRouter(cfg RouterConfig, h Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", h.Health.Root)
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		} else {
			r.Use(middleware.DefaultUser(cfg.DefaultUserID))
		}

		r.Group(func(r chi.Router) {
			if cfg.RateLimitRequests > 0 {
				r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Post("/chat", h.Chat.Chat)
			r.Post("/chat/voice", h.Chat.Voice)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.Conversations.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.ValidateID("id"))
				r.Get("/", h.Conversations.Get)
				r.Delete("/", h.Conversations.Delete)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.Events.List)
			r.Post("/", h.Events.Create)
			r.Get("/insights", h.Events.Insights)
			r.Get("/summary", h.Events.Summary)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.ValidateID("id"))
				r.Get("/", h.Events.Get)
				r.Put("/", h.Events.Update)
				r.Delete("/", h.Events.Delete)
			})
		})

		r.Post("/sync-calendar", h.Events.Sync)
	})

	return r
}
