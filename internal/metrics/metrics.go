// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors shared by the cache,
// the extractors and the orchestrator. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/cvintra-engine/pkg/types"
)

// Cache namespaces used as the "namespace" label.
const (
	NamespaceRecords     = "records"
	NamespaceExtractions = "extractions"
	NamespaceQueries     = "queries"
)

// Fallback call outcomes used as the "outcome" label.
const (
	OutcomeFound       = "found"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds Prometheus metrics for a query run.
//
// Metrics:
//   - cvintra_cache_lookups_total{namespace,result}
//   - cvintra_extractions_total{method}
//   - cvintra_fallback_calls_total{outcome}
//   - cvintra_queries_total{status}
//   - cvintra_query_duration_seconds
type Metrics struct {
	CacheLookups  *prometheus.CounterVec
	Extractions   *prometheus.CounterVec
	FallbackCalls *prometheus.CounterVec
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests and repeated runs isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvintra_cache_lookups_total",
				Help: "Cache lookups by namespace and result (hit or miss)",
			},
			[]string{"namespace", "result"},
		),
		Extractions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvintra_extractions_total",
				Help: "Extraction results produced, by method",
			},
			[]string{"method"},
		),
		FallbackCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvintra_fallback_calls_total",
				Help: "Fallback extractor invocations by outcome",
			},
			[]string{"outcome"},
		),
		Queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvintra_queries_total",
				Help: "Completed query runs by terminal status",
			},
			[]string{"status"},
		),
		QueryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cvintra_query_duration_seconds",
				Help:    "Wall time of query runs",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
	}
}

// CacheLookup records a hit or miss in namespace.
func (m *Metrics) CacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(namespace, result).Inc()
}

// Extracted counts n results produced by method.
func (m *Metrics) Extracted(method types.Method, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Extractions.WithLabelValues(string(method)).Add(float64(n))
}

// Fallback records one fallback call outcome.
func (m *Metrics) Fallback(outcome string) {
	if m == nil {
		return
	}
	m.FallbackCalls.WithLabelValues(outcome).Inc()
}

// QueryDone records a finished run.
func (m *Metrics) QueryDone(status types.QueryStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(string(status)).Inc()
	m.QueryDuration.Observe(elapsed.Seconds())
}
