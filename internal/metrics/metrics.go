// Package metrics provides Prometheus metrics for the canvas server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. Each instance owns its registry so that
// servers built in tests do not collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP and MCP request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec

	// Embedding pipeline metrics
	EmbeddingBatchesTotal *prometheus.CounterVec
	EmbeddedNotesTotal    prometheus.Counter
	EmbeddingBatchSize    prometheus.Histogram
	PipelineHalted        prometheus.Gauge

	// Retrieval metrics
	SearchQueriesTotal *prometheus.CounterVec
	IndexRebuildsTotal prometheus.Counter

	// Live update subscribers
	EventSubscribers prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.RequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.RequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canvas_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.ToolCallsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_mcp_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "outcome"},
	)

	m.EmbeddingBatchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_embedding_batches_total",
			Help: "Embedding batches processed, by outcome",
		},
		[]string{"outcome"},
	)

	m.EmbeddedNotesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_embedded_notes_total",
			Help: "Total number of notes that received an embedding",
		},
	)

	m.EmbeddingBatchSize = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canvas_embedding_batch_size",
			Help:    "Number of texts sent per embedding request",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	m.PipelineHalted = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_embedding_pipeline_halted",
			Help: "1 while the embedding pipeline is halted after a failure",
		},
	)

	m.SearchQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_search_queries_total",
			Help: "Total number of search queries, by kind",
		},
		[]string{"kind"},
	)

	m.IndexRebuildsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_vector_index_rebuilds_total",
			Help: "Total number of per-user vector index rebuilds",
		},
	)

	m.EventSubscribers = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_event_subscribers",
			Help: "Number of connected live update subscribers",
		},
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordRequest records an HTTP request with its status
func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordToolCall records an MCP tool invocation.
func (m *Metrics) RecordToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordBatch records one embedding batch. sent is the number of texts
// submitted to the embedding service.
func (m *Metrics) RecordBatch(sent int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EmbeddingBatchesTotal.WithLabelValues("error").Inc()
		return
	}
	m.EmbeddingBatchesTotal.WithLabelValues("ok").Inc()
	m.EmbeddedNotesTotal.Add(float64(sent))
	if sent > 0 {
		m.EmbeddingBatchSize.Observe(float64(sent))
	}
}

// SetHalted flips the halted gauge.
func (m *Metrics) SetHalted(halted bool) {
	if m == nil {
		return
	}
	if halted {
		m.PipelineHalted.Set(1)
	} else {
		m.PipelineHalted.Set(0)
	}
}

// RecordSearch counts a text or vector query.
func (m *Metrics) RecordSearch(kind string) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(kind).Inc()
}

// RecordIndexRebuild counts a vector index rebuild.
func (m *Metrics) RecordIndexRebuild() {
	if m == nil {
		return
	}
	m.IndexRebuildsTotal.Inc()
}

// SubscriberDelta adjusts the live subscriber gauge.
func (m *Metrics) SubscriberDelta(d int) {
	if m == nil {
		return
	}
	m.EventSubscribers.Add(float64(d))
}
