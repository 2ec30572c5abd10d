package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-normdev/internal/domain"
)

func newTestObserver(t *testing.T) (*OTelRejectionObserver, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelRejectionObserver(tp), exporter
}

func attrs(kv []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kv))
	for _, a := range kv {
		out[a.Key] = a.Value
	}
	return out
}

func TestOTelRejectionObserver_Success(t *testing.T) {
	obs, exporter := newTestObserver(t)

	ctx := obs.RunStarted(context.Background(), domain.MethodStandard, 9, 6)
	obs.RoundCompleted(ctx, domain.RoundStats{Round: 1, Candidates: 6, Eligible: 5, Groups: 1, Outliers: 1, Queued: 4})
	obs.RoundCompleted(ctx, domain.RoundStats{Round: 2, Candidates: 4, Eligible: 4, Groups: 1})
	obs.RunFinished(ctx, domain.Summary{RunID: "run-1", Outliers: 1, Rounds: 2, Datasets: 1}, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, SpanName, span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	a := attrs(span.Attributes)
	assert.Equal(t, "standard", a["rejection.method"].AsString())
	assert.Equal(t, 9.0, a["rejection.zmax"].AsFloat64())
	assert.Equal(t, int64(6), a["rejection.observations"].AsInt64())
	assert.Equal(t, "run-1", a["rejection.run_id"].AsString())
	assert.Equal(t, int64(1), a["rejection.outliers"].AsInt64())
	assert.False(t, a["rejection.combined"].AsBool())

	require.Len(t, span.Events, 2)
	assert.Equal(t, "rejection.round", span.Events[0].Name)
	assert.Equal(t, int64(4), attrs(span.Events[0].Attributes)["queued"].AsInt64())
	assert.Equal(t, int64(2), attrs(span.Events[1].Attributes)["round"].AsInt64())
}

func TestOTelRejectionObserver_Ambiguous(t *testing.T) {
	obs, exporter := newTestObserver(t)

	ctx := obs.RunStarted(context.Background(), domain.MethodStandard, 5, 5)
	obs.RunFinished(ctx, domain.Summary{Outcome: domain.Outcome{Ambiguous: []int{0, 1}}}, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "rejection.max_rounds_reached", spans[0].Events[0].Name)
}

func TestOTelRejectionObserver_Error(t *testing.T) {
	obs, exporter := newTestObserver(t)

	ctx := obs.RunStarted(context.Background(), domain.MethodSimple, 3, 10)
	err := domain.NewRejectionError(domain.MethodSimple, 1, errors.New("boom"))
	obs.RunFinished(ctx, domain.Summary{}, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Status.Description, "boom")
	assert.Equal(t, int64(1), attrs(spans[0].Attributes)["rejection.failed_round"].AsInt64())

	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestOTelRejectionObserver_ConcurrentRuns(t *testing.T) {
	obs, exporter := newTestObserver(t)

	first := obs.RunStarted(context.Background(), domain.MethodStandard, 9, 1)
	second := obs.RunStarted(context.Background(), domain.MethodSimple, 9, 2)
	obs.RunFinished(second, domain.Summary{}, nil)
	obs.RunFinished(first, domain.Summary{}, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "simple", attrs(spans[0].Attributes)["rejection.method"].AsString(), "each run ends its own span")
	assert.Equal(t, "standard", attrs(spans[1].Attributes)["rejection.method"].AsString())
}
