// Package metrics exposes prometheus collectors for the analytics pipeline.
//
// All recording methods are safe on a nil *Registry so services can be built
// without metrics in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all folio metrics on a dedicated prometheus registry
type Registry struct {
	reg *prometheus.Registry

	// Quote/history cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Upstream provider
	ProviderFailures *prometheus.CounterVec

	// Pipeline
	StepDuration    *prometheus.HistogramVec
	Recommendations *prometheus.CounterVec
	Predictions     *prometheus.CounterVec
	HistoryRecorded prometheus.Counter
}

// NewRegistry creates a registry with every collector registered
func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_hits_total",
				Help: "Total number of provider cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_misses_total",
				Help: "Total number of provider cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		ProviderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_provider_failures_total",
				Help: "Failed upstream market data requests by endpoint",
			},
			[]string{"endpoint"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_step_duration_seconds",
				Help:    "Duration of each analytics step in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"step"},
		),

		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_recommendations_total",
				Help: "Recommendations emitted by type and priority",
			},
			[]string{"type", "priority"},
		),

		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_predictions_total",
				Help: "Per-symbol predictions by method (model, baseline, skipped)",
			},
			[]string{"method"},
		),

		HistoryRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_history_points_recorded_total",
				Help: "Portfolio value snapshots written",
			},
		),
	}

	m.reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.ProviderFailures,
		m.StepDuration,
		m.Recommendations,
		m.Predictions,
		m.HistoryRecorded,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}

// RecordCacheHit increments the cache hit counter
func (m *Registry) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter
func (m *Registry) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordProviderFailure counts a failed upstream request
func (m *Registry) RecordProviderFailure(endpoint string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(endpoint).Inc()
}

// RecordRecommendation counts an emitted recommendation
func (m *Registry) RecordRecommendation(kind, priority string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(kind, priority).Inc()
}

// RecordPrediction counts a prediction outcome
func (m *Registry) RecordPrediction(method string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(method).Inc()
}

// RecordHistoryPoint counts a written snapshot
func (m *Registry) RecordHistoryPoint() {
	if m == nil {
		return
	}
	m.HistoryRecorded.Inc()
}

// StepTimer measures one analytics step
type StepTimer struct {
	m     *Registry
	step  string
	start time.Time
}

// StartStep begins timing a named step. Call Stop when it finishes.
func (m *Registry) StartStep(step string) *StepTimer {
	return &StepTimer{m: m, step: step, start: time.Now()}
}

// Stop records the elapsed time and returns it
func (t *StepTimer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.m != nil {
		t.m.StepDuration.WithLabelValues(t.step).Observe(elapsed.Seconds())
	}
	return elapsed
}
