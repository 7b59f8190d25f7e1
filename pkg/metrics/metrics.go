// Package metrics provides Prometheus metrics for the prediction pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ArenaMetrics collects and exposes pipeline Prometheus metrics.
type ArenaMetrics struct {
	registry *prometheus.Registry

	// Orchestration metrics
	PredictionsTotal *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderTokens   *prometheus.CounterVec
	ProviderCost     *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	ParseFailures    *prometheus.CounterVec
	Confidence       *prometheus.HistogramVec

	// Settlement metrics
	SettlementsTotal *prometheus.CounterVec

	// Sweep metrics
	SweepDuration *prometheus.HistogramVec
	SweepRuns     *prometheus.CounterVec

	// Streaming metrics
	ConnectedClients prometheus.Gauge
}

// NewArenaMetrics creates a new metrics collector with its own registry.
func NewArenaMetrics() *ArenaMetrics {
	registry := prometheus.NewRegistry()

	am := &ArenaMetrics{
		registry: registry,

		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_predictions_total",
				Help: "Total number of prediction attempts",
			},
			[]string{"agent", "provider", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_provider_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~256s
			},
			[]string{"provider"},
		),
		ProviderTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_provider_tokens_total",
				Help: "Total tokens consumed per provider",
			},
			[]string{"provider"},
		),
		ProviderCost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_provider_cost_usd_total",
				Help: "Estimated provider spend in USD",
			},
			[]string{"provider"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_retries_total",
				Help: "Total number of provider call retries",
			},
			[]string{"provider"},
		),
		ParseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_parse_failures_total",
				Help: "Total number of unparseable provider responses",
			},
			[]string{"provider"},
		),
		Confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_prediction_confidence",
				Help:    "Stated prediction confidence (0.5-1.0)",
				Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
			},
			[]string{"agent"},
		),

		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_settlements_total",
				Help: "Total number of settled predictions",
			},
			[]string{"outcome"},
		),

		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_sweep_duration_seconds",
				Help:    "Sweep pass duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
			},
			[]string{"sweep"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_sweep_runs_total",
				Help: "Total number of sweep passes",
			},
			[]string{"sweep", "status"},
		),

		ConnectedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arena_stream_clients",
				Help: "Currently connected streaming clients",
			},
		),
	}

	am.registerAll()

	return am
}

func (am *ArenaMetrics) registerAll() {
	am.registry.MustRegister(
		am.PredictionsTotal,
		am.ProviderLatency,
		am.ProviderTokens,
		am.ProviderCost,
		am.RetriesTotal,
		am.ParseFailures,
		am.Confidence,
		am.SettlementsTotal,
		am.SweepDuration,
		am.SweepRuns,
		am.ConnectedClients,
	)
}

// Registry returns the prometheus registry.
func (am *ArenaMetrics) Registry() *prometheus.Registry {
	return am.registry
}

// RecordPrediction records one finished prediction attempt.
func (am *ArenaMetrics) RecordPrediction(agent, provider, status string, latencySec float64, tokens int, costUSD float64) {
	am.PredictionsTotal.WithLabelValues(agent, provider, status).Inc()
	if latencySec > 0 {
		am.ProviderLatency.WithLabelValues(provider).Observe(latencySec)
	}
	if tokens > 0 {
		am.ProviderTokens.WithLabelValues(provider).Add(float64(tokens))
	}
	if costUSD > 0 {
		am.ProviderCost.WithLabelValues(provider).Add(costUSD)
	}
}

// RecordConfidence records the stated confidence of a stored prediction.
func (am *ArenaMetrics) RecordConfidence(agent string, confidence float64) {
	am.Confidence.WithLabelValues(agent).Observe(confidence)
}

// RecordRetry records one provider call retry.
func (am *ArenaMetrics) RecordRetry(provider string) {
	am.RetriesTotal.WithLabelValues(provider).Inc()
}

// RecordParseFailure records one unparseable response.
func (am *ArenaMetrics) RecordParseFailure(provider string) {
	am.ParseFailures.WithLabelValues(provider).Inc()
}

// RecordSettlement records one settled prediction by outcome
// (correct, incorrect or voided).
func (am *ArenaMetrics) RecordSettlement(outcome string) {
	am.SettlementsTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep records one sweep pass.
func (am *ArenaMetrics) RecordSweep(sweep, status string, durationSec float64) {
	am.SweepRuns.WithLabelValues(sweep, status).Inc()
	if durationSec > 0 {
		am.SweepDuration.WithLabelValues(sweep).Observe(durationSec)
	}
}

// Global instance for convenience
var defaultMetrics *ArenaMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *ArenaMetrics {
	once.Do(func() {
		defaultMetrics = NewArenaMetrics()
	})
	return defaultMetrics
}
