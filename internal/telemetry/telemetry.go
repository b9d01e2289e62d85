// Package telemetry holds the Prometheus instruments exposed on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service counters and histograms with their registry.
type Metrics struct {
	Registry *prometheus.Registry

	DocumentsIngested *prometheus.CounterVec
	ChunksIngested    prometheus.Counter
	Queries           *prometheus.CounterVec
	LLMLatency        *prometheus.HistogramVec
	AnalyticsDropped  prometheus.Counter
}

// New creates a fresh registry with all instruments registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		DocumentsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intellidocs_documents_ingested_total",
			Help: "Documents ingested, by file type.",
		}, []string{"type"}),
		ChunksIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "intellidocs_chunks_ingested_total",
			Help: "Chunks embedded and stored.",
		}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intellidocs_queries_total",
			Help: "Questions answered, by outcome.",
		}, []string{"outcome"}),
		LLMLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intellidocs_llm_request_seconds",
			Help:    "LLM round-trip latency, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AnalyticsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "intellidocs_analytics_dropped_total",
			Help: "Analytics writes that failed and were discarded.",
		}),
	}
}
