package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-normdev/internal/domain"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like flagged outliers, failed runs, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like the eligible observation count.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like rounds per run.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// RejectionObserver receives lifecycle notifications from the driver so that
// tracing or reporting can be attached without the algorithm knowing about it.
type RejectionObserver interface {
	// RunStarted is called after configuration has been validated and before
	// any flag is touched. The returned context is used for the rest of the run.
	RunStarted(ctx context.Context, method domain.Method, zmax float64, observations int) context.Context

	// RoundCompleted is called once per estimation round, in order.
	RoundCompleted(ctx context.Context, stats domain.RoundStats)

	// RunFinished is called exactly once per started run. err is nil on success.
	RunFinished(ctx context.Context, summary domain.Summary, err error)
}

// Metric names emitted by the rejection driver. Collectors map them onto
// their own instruments; unknown names fall through to generic instruments.
const (
	// MetricOutliersFlagged counts observations flagged as outliers.
	MetricOutliersFlagged = "outliers_flagged_total"

	// MetricRejectionRuns counts completed driver runs, labelled by status.
	MetricRejectionRuns = "rejection_runs_total"

	// MetricRejectionDuration is the latency operation for a whole run.
	MetricRejectionDuration = "rejection_duration_seconds"

	// MetricRejectionRounds records the number of estimation rounds per run.
	MetricRejectionRounds = "rejection_rounds"

	// MetricEligibleObservations is the number of observations scored in the
	// first round of the latest run.
	MetricEligibleObservations = "eligible_observations"
)
