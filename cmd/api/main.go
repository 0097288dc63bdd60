// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/app"
	"github.com/capitalize-ai/calendar-assistant/internal/config"
	"github.com/capitalize-ai/calendar-assistant/internal/handler"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server", zap.String("env", cfg.Env))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "calendar-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	log.Info("components ready",
		zap.String("calendar", a.Calendar.ProviderName()),
		zap.Bool("calendar_configured", a.Calendar.Configured()),
		zap.Bool("voice", a.Transcriber != nil),
		zap.Bool("nats", a.NATS != nil),
	)

	// Initialize handlers
	checks := map[string]handler.Pinger{"database": a.Store}
	if a.NATS != nil {
		checks["nats"] = a.NATS
	}
	handlers := handler.Handlers{
		Health:        handler.NewHealthHandler(checks),
		Chat:          handler.NewChatHandler(a.Chat, a.Transcriber, log),
		Conversations: handler.NewConversationHandler(a.Conversations, log),
		Events:        handler.NewEventHandler(a.Events, log),
	}

	r := handler.NewRouter(handler.RouterConfig{
		AuthEnabled:       cfg.AuthEnabled,
		JWTSecret:         cfg.JWTSecret,
		DefaultUserID:     cfg.DefaultUserID,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handlers, log)

	if cfg.ReviewerEnabled {
		a.Reviewer.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.ReviewerEnabled {
		a.Reviewer.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
