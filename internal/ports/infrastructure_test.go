package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-normdev/internal/domain"
)

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  []time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// newMockMetricsCollector creates a new mock metrics collector for testing.
func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  []time.Duration{},
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies = append(m.latencies, duration)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

// mockObserver implements RejectionObserver interface
type mockObserver struct {
	started  int
	rounds   []domain.RoundStats
	finished []error
}

func (m *mockObserver) RunStarted(ctx context.Context, method domain.Method, zmax float64, observations int) context.Context {
	m.started++
	return ctx
}

func (m *mockObserver) RoundCompleted(ctx context.Context, stats domain.RoundStats) {
	m.rounds = append(m.rounds, stats)
}

func (m *mockObserver) RunFinished(ctx context.Context, summary domain.Summary, err error) {
	m.finished = append(m.finished, err)
}

func TestInterfaces_Implementation(t *testing.T) {
	var _ MetricsCollector = (*mockMetricsCollector)(nil)
	var _ RejectionObserver = (*mockObserver)(nil)
	var _ ObservationSet = (*domain.Table)(nil)
}

func TestMetricsCollector_Recording(t *testing.T) {
	metrics := newMockMetricsCollector()
	labels := map[string]string{"method": "standard"}

	metrics.RecordLatency("reject_outliers", 100*time.Millisecond, labels)
	assert.Len(t, metrics.latencies, 1, "RecordLatency() should record one duration")
	assert.Equal(t, 100*time.Millisecond, metrics.latencies[0], "RecordLatency() duration mismatch")

	metrics.RecordCounter("outliers_flagged", 1, labels)
	metrics.RecordCounter("outliers_flagged", 2, labels)
	assert.Equal(t, float64(3), metrics.counters["outliers_flagged"], "RecordCounter() sum mismatch")

	metrics.RecordGauge("eligible_observations", 10, labels)
	metrics.RecordGauge("eligible_observations", 5, labels)
	assert.Equal(t, float64(5), metrics.gauges["eligible_observations"], "RecordGauge() value mismatch")

	metrics.RecordHistogram("rejection_rounds", 1, labels)
	metrics.RecordHistogram("rejection_rounds", 3, labels)
	assert.Len(t, metrics.histograms["rejection_rounds"], 2, "RecordHistogram() should record two values")
}

func TestRejectionObserver_Lifecycle(t *testing.T) {
	obs := &mockObserver{}
	ctx := obs.RunStarted(context.Background(), domain.MethodStandard, 9, 5)
	obs.RoundCompleted(ctx, domain.RoundStats{Round: 1, Outliers: 1})
	obs.RoundCompleted(ctx, domain.RoundStats{Round: 2})
	obs.RunFinished(ctx, domain.Summary{Outliers: 1}, nil)

	assert.Equal(t, 1, obs.started)
	assert.Len(t, obs.rounds, 2)
	assert.Equal(t, []error{nil}, obs.finished)
}
