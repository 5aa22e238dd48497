// Package metrics provides Prometheus metrics for the signal engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics collects and exposes engine-level Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Generator metrics
	GeneratorCalls   *prometheus.CounterVec
	GeneratorLatency prometheus.Histogram
	QuotaCooldowns   prometheus.Counter

	// Sync cycle metrics
	SyncCycles   *prometheus.CounterVec
	BatchSize    prometheus.Histogram
	SignalsTotal *prometheus.CounterVec

	// Container gauges
	FeedSize       prometheus.Gauge
	LedgerSize     prometheus.Gauge
	SavedSize      prometheus.Gauge
	TrackedMatches prometheus.Gauge

	// Resolution metrics
	ResolutionsTotal *prometheus.CounterVec
}

// NewEngineMetrics creates and registers the engine metric set on a
// fresh registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	m := &EngineMetrics{
		registry: registry,

		GeneratorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsignal_generator_calls_total",
				Help: "Generator invocations by outcome",
			},
			[]string{"outcome"}, // ok, quota, error
		),
		GeneratorLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "betsignal_generator_latency_seconds",
				Help:    "Wall-clock duration of generator calls including retries",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
			},
		),
		QuotaCooldowns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "betsignal_quota_cooldowns_total",
				Help: "Sync cycles skipped due to quota cooldown",
			},
		),

		SyncCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsignal_sync_cycles_total",
				Help: "Scheduler cycles by result",
			},
			[]string{"result"}, // ok, empty, skipped, cooldown, offline, error
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "betsignal_batch_size",
				Help:    "Matches per generator batch",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsignal_signals_total",
				Help: "Signals produced by market type",
			},
			[]string{"type"},
		),

		FeedSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsignal_feed_size",
				Help: "Signals currently in the live feed",
			},
		),
		LedgerSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsignal_ledger_size",
				Help: "Entries in the history ledger",
			},
		),
		SavedSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsignal_saved_size",
				Help: "Entries in the saved-signal set",
			},
		),
		TrackedMatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "betsignal_tracked_matches",
				Help: "Matches currently in the snapshot store",
			},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betsignal_resolutions_total",
				Help: "Signal settlements by outcome",
			},
			[]string{"outcome"}, // win, loss
		),
	}

	registry.MustRegister(
		m.GeneratorCalls,
		m.GeneratorLatency,
		m.QuotaCooldowns,
		m.SyncCycles,
		m.BatchSize,
		m.SignalsTotal,
		m.FeedSize,
		m.LedgerSize,
		m.SavedSize,
		m.TrackedMatches,
		m.ResolutionsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}
