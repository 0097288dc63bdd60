// Package extractor turns conversation text into scheduling intents with a
// language model, and produces reminders, pattern insights and summaries from
// stored events. No method returns an error: every model or parse failure is
// logged and replaced with a fixed fallback.
package extractor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
	"github.com/capitalize-ai/calendar-assistant/pkg/metrics"
	"github.com/capitalize-ai/calendar-assistant/pkg/tracing"
)

// Config tunes model selection and call bounds.
type Config struct {
	ExtractionModel string
	ReviewModel     string
	Timeout         time.Duration
}

// Extractor wraps two model clients: one for intent extraction and one for
// the review operations. Either may be nil.
type Extractor struct {
	extraction llm.Client
	review     llm.Client
	cfg        Config
	log        *logger.Logger
}

// New creates an Extractor. A nil review client falls back to extraction.
func New(extraction, review llm.Client, cfg Config, log *logger.Logger) *Extractor {
	if review == nil {
		review = extraction
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Extractor{
		extraction: extraction,
		review:     review,
		cfg:        cfg,
		log:        log.Named("extractor"),
	}
}

// complete runs one bounded model call. ok is false on any failure or an
// empty answer.
func (x *Extractor) complete(ctx context.Context, client llm.Client, purpose string, req *llm.CompletionRequest) (string, bool) {
	if client == nil {
		x.log.Warn("no model configured", zap.String("purpose", purpose))
		metrics.RecordLLM(purpose, "", "unconfigured", 0, 0, 0)
		return "", false
	}

	ctx, span := tracing.Start(ctx, "llm."+purpose,
		attribute.String("llm.provider", client.Name()),
		attribute.String("llm.model", req.Model),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		metrics.RecordLLM(purpose, req.Model, "error", elapsed, 0, 0)
		x.log.Error("model call failed",
			zap.String("purpose", purpose),
			zap.String("provider", client.Name()),
			zap.Error(err),
		)
		return "", false
	}

	metrics.RecordLLM(purpose, resp.Model, "ok", elapsed, resp.TokensIn, resp.TokensOut)
	if resp.Content == "" {
		x.log.Warn("model returned no content", zap.String("purpose", purpose))
		return "", false
	}
	return resp.Content, true
}
