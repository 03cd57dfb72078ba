package hooks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rickchristie/cellfmt"
)

// Metrics exports formatting metrics to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	batches      *prometheus.CounterVec
	cells        *prometheus.CounterVec
	cellLatency  *prometheus.HistogramVec
	availability *prometheus.GaugeVec
}

// MetricsConfig configures the Prometheus hook.
type MetricsConfig struct {
	// Registry to register collectors on (if nil, creates a new one).
	Registry *prometheus.Registry

	// Namespace prefixes every metric name. Defaults to "cellfmt".
	Namespace string

	// LatencyBuckets for cell latency histograms, in seconds.
	LatencyBuckets []float64
}

// DefaultMetricsConfig returns the default Prometheus configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:      "cellfmt",
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}
}

// NewMetrics creates the hook and registers its collectors.
func NewMetrics(cfg MetricsConfig) *Metrics {
	def := DefaultMetricsConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = def.LatencyBuckets
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "batches_total",
			Help:      "Format batches processed, by formatter.",
		}, []string{"formatter"}),
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cells_total",
			Help:      "Cells formatted, by formatter and outcome.",
		}, []string{"formatter", "outcome"}),
		cellLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "cell_duration_seconds",
			Help:      "Time spent formatting one cell.",
			Buckets:   cfg.LatencyBuckets,
		}, []string{"formatter"}),
		availability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "formatter_available",
			Help:      "1 if the formatter was available at its last probe, 0 otherwise.",
		}, []string{"formatter"}),
	}

	reg.MustRegister(m.batches, m.cells, m.cellLatency, m.availability)
	return m
}

// Registry returns the Prometheus registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnAfterBatch counts the batch.
func (m *Metrics) OnAfterBatch(_ context.Context, e cellfmt.AfterBatchEvent) {
	m.batches.WithLabelValues(e.Formatter).Inc()
}

// OnAfterCell records the cell outcome and latency.
func (m *Metrics) OnAfterCell(_ context.Context, e cellfmt.AfterCellEvent) {
	outcome := "ok"
	if e.Error != nil {
		outcome = "error"
	}
	m.cells.WithLabelValues(e.Formatter, outcome).Inc()
	m.cellLatency.WithLabelValues(e.Formatter).Observe(e.Duration.Seconds())
}

// OnAvailability tracks the last fresh probe result.
func (m *Metrics) OnAvailability(_ context.Context, e cellfmt.AvailabilityEvent) {
	if e.Cached {
		return
	}
	v := 0.0
	if e.Availability.OK() {
		v = 1
	}
	m.availability.WithLabelValues(e.Formatter).Set(v)
}

var (
	_ cellfmt.AfterBatchHook   = (*Metrics)(nil)
	_ cellfmt.AfterCellHook    = (*Metrics)(nil)
	_ cellfmt.AvailabilityHook = (*Metrics)(nil)
)
