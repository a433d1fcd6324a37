// Package observability provides the Prometheus metrics and OpenTelemetry
// tracing glue used by the dispatcher.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects dispatch-level metrics.
//
// All record methods are nil-safe: a nil *Metrics disables collection, which
// keeps tests and minimal deployments free of registry bookkeeping.
type Metrics struct {
	// DispatchCounter counts dispatches by interaction kind and outcome.
	// Labels: kind (chat_input|user_menu|message_menu|prefix|autocomplete),
	// outcome (ok|rejected|cooldown|unknown_command|structure_mismatch|panic|error)
	DispatchCounter *prometheus.CounterVec

	// HandlerDuration measures handler execution time in seconds.
	// Labels: command
	HandlerDuration *prometheus.HistogramVec

	// CheckRejections counts pipeline rejections by stage.
	// Labels: stage (global|command|owner|permissions|cooldown)
	CheckRejections *prometheus.CounterVec

	// AutocompleteCounter counts autocomplete requests by status.
	// Labels: status (ok|no_focus|no_callback|callback_error|send_error)
	AutocompleteCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all dispatcher metrics with the default
// Prometheus registry. Call once at application startup; they surface on the
// /metrics endpoint through the standard promhttp handler.
func NewMetrics() *Metrics {
	return &Metrics{
		DispatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossroad_dispatches_total",
				Help: "Total command dispatches by interaction kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		HandlerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crossroad_handler_duration_seconds",
				Help:    "Handler execution time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"command"},
		),
		CheckRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossroad_check_rejections_total",
				Help: "Admission check rejections by pipeline stage",
			},
			[]string{"stage"},
		),
		AutocompleteCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossroad_autocomplete_requests_total",
				Help: "Autocomplete requests by status",
			},
			[]string{"status"},
		),
	}
}

// RecordDispatch records one dispatch outcome.
func (m *Metrics) RecordDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.DispatchCounter.WithLabelValues(kind, outcome).Inc()
}

// RecordHandlerDuration records how long a handler ran.
func (m *Metrics) RecordHandlerDuration(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordCheckRejection records a pipeline rejection at the given stage.
func (m *Metrics) RecordCheckRejection(stage string) {
	if m == nil {
		return
	}
	m.CheckRejections.WithLabelValues(stage).Inc()
}

// RecordAutocomplete records one autocomplete request status.
func (m *Metrics) RecordAutocomplete(status string) {
	if m == nil {
		return
	}
	m.AutocompleteCounter.WithLabelValues(status).Inc()
}
