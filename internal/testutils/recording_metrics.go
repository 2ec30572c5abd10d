package testutils

import (
	"maps"
	"sync"
	"time"

	"github.com/ahrav/go-normdev/internal/ports"
)

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// MetricCall is one call received by RecordingMetrics.
type MetricCall struct {
	Kind   string // latency, counter, gauge or histogram
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics is a MetricsCollector that keeps every call in memory.
// It is safe for concurrent use.
type RecordingMetrics struct {
	mu    sync.Mutex
	calls []MetricCall
}

// NewRecordingMetrics creates an empty recorder.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{}
}

func (r *RecordingMetrics) record(kind, name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, MetricCall{Kind: kind, Name: name, Value: value, Labels: maps.Clone(labels)})
}

// RecordLatency records duration in seconds.
func (r *RecordingMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	r.record("latency", operation, duration.Seconds(), labels)
}

// RecordCounter records a counter increment.
func (r *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.record("counter", metric, value, labels)
}

// RecordGauge records a gauge value.
func (r *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.record("gauge", metric, value, labels)
}

// RecordHistogram records a histogram observation.
func (r *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.record("histogram", metric, value, labels)
}

// Calls returns a copy of every recorded call in order.
func (r *RecordingMetrics) Calls() []MetricCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MetricCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// Sum adds the values of every call with the given name whose labels
// include match.
func (r *RecordingMetrics) Sum(name string, match map[string]string) float64 {
	var total float64
	for _, c := range r.Calls() {
		if c.Name != name || !labelsMatch(c.Labels, match) {
			continue
		}
		total += c.Value
	}
	return total
}

// Last returns the most recent call with the given name.
func (r *RecordingMetrics) Last(name string) (MetricCall, bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Name == name {
			return calls[i], true
		}
	}
	return MetricCall{}, false
}

func labelsMatch(labels, match map[string]string) bool {
	for k, v := range match {
		if labels[k] != v {
			return false
		}
	}
	return true
}
