// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// LLMRequestDuration tracks model call latency by purpose (extract, reminder, insights, summary).
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"purpose", "result"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// CalendarOps counts remote calendar calls by operation and result.
	CalendarOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_operations_total",
			Help: "Remote calendar operations",
		},
		[]string{"op", "result"},
	)

	// EventsCreated counts local events by origin (chat, api, pull).
	EventsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_created_total",
			Help: "Local events created",
		},
		[]string{"origin"},
	)

	// ReviewerRuns counts periodic reviewer passes.
	ReviewerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewer_runs_total",
			Help: "Periodic reviewer passes",
		},
		[]string{"job", "result"},
	)

	// NotificationsEmitted counts reminders and insight reports.
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Reminders and insight reports emitted",
		},
		[]string{"kind"},
	)

	// MessagesTotal tracks chat messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordLLM records one model call.
func RecordLLM(purpose, model, result string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(purpose, result).Observe(duration)
	if tokensIn > 0 {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}

// RecordCalendarOp records a remote calendar call.
func RecordCalendarOp(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	CalendarOps.WithLabelValues(op, result).Inc()
}
