// Package metrics holds the Prometheus metrics of the assistant.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	handlerInvocations  *prometheus.CounterVec
	handlerUnavailable  *prometheus.CounterVec
	handlerLatency      *prometheus.HistogramVec
	routingDecisions    *prometheus.CounterVec
	routingFailures     prometheus.Counter
	filterDecisions     *prometheus.CounterVec
	consolidations      *prometheus.CounterVec
	consolidationResult *prometheus.CounterVec
	memoryQueueDrops    prometheus.Counter
	queries             *prometheus.CounterVec
	queryDuration       prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a metrics instance on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		handlerInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_handler_invocations_total",
				Help: "Handler invocations by outcome",
			},
			[]string{"handler", "outcome"},
		),
		handlerUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_handler_unavailable_total",
				Help: "Handler invocations that produced no contribution",
			},
			[]string{"handler", "reason"},
		),
		handlerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_handler_duration_seconds",
				Help:    "Handler invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		routingDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_routing_decisions_total",
				Help: "Routing decisions by mode and confidence",
			},
			[]string{"mode", "low_confidence"},
		),
		routingFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "assistant_routing_failures_total",
				Help: "Queries that could not be classified",
			},
		),
		filterDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_filter_decisions_total",
				Help: "Security filter decisions by field kind",
			},
			[]string{"kind", "decision"},
		),
		consolidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_memory_consolidations_total",
				Help: "Memory consolidation passes by status",
			},
			[]string{"status"},
		),
		consolidationResult: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_memory_candidates_total",
				Help: "Memory candidates by consolidation result",
			},
			[]string{"result"},
		),
		memoryQueueDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "assistant_memory_queue_dropped_total",
				Help: "Interactions dropped because the memory queue was full",
			},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_queries_total",
				Help: "Queries handled by result code",
			},
			[]string{"code"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assistant_query_duration_seconds",
				Help:    "End to end query latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.handlerInvocations,
		m.handlerUnavailable,
		m.handlerLatency,
		m.routingDecisions,
		m.routingFailures,
		m.filterDecisions,
		m.consolidations,
		m.consolidationResult,
		m.memoryQueueDrops,
		m.queries,
		m.queryDuration,
	)

	return m
}

// RecordHandler records one handler invocation.
func (m *Metrics) RecordHandler(handler, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.handlerInvocations.WithLabelValues(handler, outcome).Inc()
	m.handlerLatency.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordHandlerUnavailable records a handler that made no contribution.
func (m *Metrics) RecordHandlerUnavailable(handler, reason string) {
	if m == nil {
		return
	}
	m.handlerUnavailable.WithLabelValues(handler, reason).Inc()
}

// RecordRouting records a routing decision.
func (m *Metrics) RecordRouting(mode string, lowConfidence bool) {
	if m == nil {
		return
	}
	m.routingDecisions.WithLabelValues(mode, strconv.FormatBool(lowConfidence)).Inc()
}

// RecordRoutingFailure records a classification failure.
func (m *Metrics) RecordRoutingFailure() {
	if m == nil {
		return
	}
	m.routingFailures.Inc()
}

// RecordFilterDecision records a security filter decision.
func (m *Metrics) RecordFilterDecision(kind, decision string) {
	if m == nil {
		return
	}
	m.filterDecisions.WithLabelValues(kind, decision).Inc()
}

// RecordConsolidation records a consolidation pass.
func (m *Metrics) RecordConsolidation(status string) {
	if m == nil {
		return
	}
	m.consolidations.WithLabelValues(status).Inc()
}

// RecordCandidate records how one memory candidate was resolved.
func (m *Metrics) RecordCandidate(result string) {
	if m == nil {
		return
	}
	m.consolidationResult.WithLabelValues(result).Inc()
}

// RecordMemoryDrop records an interaction dropped by a full memory queue.
func (m *Metrics) RecordMemoryDrop() {
	if m == nil {
		return
	}
	m.memoryQueueDrops.Inc()
}

// RecordQuery records the result of one query.
func (m *Metrics) RecordQuery(code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(code).Inc()
	m.queryDuration.Observe(duration.Seconds())
}

// HandlerUnavailableCount returns the unavailable count for a handler across reasons.
func (m *Metrics) HandlerUnavailableCount(handler string) float64 {
	if m == nil {
		return 0
	}
	var total float64
	for _, reason := range []string{ReasonTimeout, ReasonError, ReasonPanic, ReasonMissing, ReasonCancelled} {
		total += counterValue(m.handlerUnavailable.WithLabelValues(handler, reason))
	}
	return total
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Unavailability reasons.
const (
	ReasonTimeout   = "timeout"
	ReasonError     = "error"
	ReasonPanic     = "panic"
	ReasonMissing   = "missing"
	ReasonCancelled = "cancelled"
)
