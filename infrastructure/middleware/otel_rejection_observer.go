package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

// TracerName is the instrumentation scope of rejection spans.
const TracerName = "github.com/ahrav/go-normdev"

// SpanName is the name of the span covering one driver run.
const SpanName = "normdev.RejectOutliers"

var _ ports.RejectionObserver = (*OTelRejectionObserver)(nil)

// OTelRejectionObserver implements observability for rejection runs using
// OpenTelemetry tracing. Each run gets a span carrying the configuration as
// attributes and one event per estimation round.
//
// The span travels in the context returned by RunStarted, so a single
// observer can serve concurrent runs.
type OTelRejectionObserver struct {
	tracer trace.Tracer
}

// NewOTelRejectionObserver creates an observer using tp, or the global
// tracer provider when tp is nil.
func NewOTelRejectionObserver(tp trace.TracerProvider) *OTelRejectionObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelRejectionObserver{tracer: tp.Tracer(TracerName)}
}

// RunStarted implements the RejectionObserver interface. It starts the run
// span and records the configuration.
func (o *OTelRejectionObserver) RunStarted(
	ctx context.Context,
	method domain.Method,
	zmax float64,
	observations int,
) context.Context {
	ctx, span := o.tracer.Start(ctx, SpanName)
	span.SetAttributes(
		attribute.String("rejection.method", method.String()),
		attribute.Float64("rejection.zmax", zmax),
		attribute.Int("rejection.observations", observations),
	)
	return ctx
}

// RoundCompleted implements the RejectionObserver interface by adding a span
// event for the round.
func (o *OTelRejectionObserver) RoundCompleted(ctx context.Context, stats domain.RoundStats) {
	trace.SpanFromContext(ctx).AddEvent("rejection.round", trace.WithAttributes(
		attribute.Int("round", stats.Round),
		attribute.Int("candidates", stats.Candidates),
		attribute.Int("eligible", stats.Eligible),
		attribute.Int("groups", stats.Groups),
		attribute.Int("outliers", stats.Outliers),
		attribute.Int("queued", stats.Queued),
	))
}

// RunFinished implements the RejectionObserver interface. It records the
// result and ends the span.
func (o *OTelRejectionObserver) RunFinished(ctx context.Context, summary domain.Summary, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if err != nil {
		span.RecordError(err)
		var rerr *domain.RejectionError
		if errors.As(err, &rerr) {
			span.SetAttributes(attribute.Int("rejection.failed_round", rerr.Round))
		}
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("rejection.run_id", summary.RunID),
		attribute.Int("rejection.outliers", summary.Outliers),
		attribute.Int("rejection.rounds", summary.Rounds),
		attribute.Int("rejection.datasets", summary.Datasets),
		attribute.Bool("rejection.combined", summary.Combined),
	)
	if n := len(summary.Outcome.Ambiguous); n > 0 {
		span.AddEvent("rejection.max_rounds_reached", trace.WithAttributes(
			attribute.Int("ambiguous", n),
		))
	}
	span.SetStatus(codes.Ok, "outlier rejection completed")
}
