// Package middleware provides cross-cutting concerns for the rejection driver:
// Prometheus metrics and OpenTelemetry tracing.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-normdev/internal/ports"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "normdev"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks how many outliers each method flags, how long runs take and how
// many rounds they need. Only the metric names declared in ports are
// recorded; other names are ignored.
type PrometheusMetrics struct {
	outliersFlagged  *prometheus.CounterVec
	rejectionRuns    *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	rounds           *prometheus.HistogramVec
	eligible         *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics with reg. A nil reg uses the default registerer.
// An empty namespace uses DefaultNamespace.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		outliersFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricOutliersFlagged,
				Help:      "Total number of observations flagged as outliers.",
			},
			[]string{"method"},
		),
		rejectionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricRejectionRuns,
				Help:      "Total number of outlier rejection runs by outcome.",
			},
			[]string{"method", "status"},
		),
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      ports.MetricRejectionDuration,
				Help:      "Wall time of outlier rejection runs.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		rounds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      ports.MetricRejectionRounds,
				Help:      "Number of estimation rounds per rejection run.",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"method"},
		),
		eligible: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      ports.MetricEligibleObservations,
				Help:      "Observations scored in the first round of the latest run.",
			},
			[]string{"method"},
		),
	}
}

// methodLabel returns the method label or "unknown" when it is missing.
func methodLabel(labels map[string]string) string {
	if m := labels["method"]; m != "" {
		return m
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	if operation == ports.MetricRejectionDuration {
		pm.executionLatency.WithLabelValues(methodLabel(labels)).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	method := methodLabel(labels)

	switch metric {
	case ports.MetricOutliersFlagged:
		pm.outliersFlagged.WithLabelValues(method).Add(value)
	case ports.MetricRejectionRuns:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.rejectionRuns.WithLabelValues(method, status).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	if metric == ports.MetricEligibleObservations {
		pm.eligible.WithLabelValues(methodLabel(labels)).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	method := methodLabel(labels)

	switch metric {
	case ports.MetricRejectionRounds:
		pm.rounds.WithLabelValues(method).Observe(value)
	case ports.MetricRejectionDuration:
		pm.executionLatency.WithLabelValues(method).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
