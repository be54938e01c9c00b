package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ranking"

// StartSpan opens an internal span for a ranking, cache or mutation operation
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// TraceQuery opens a span for a ranked list query
func TraceQuery(ctx context.Context, kind string, limit, timeframeHours int) (context.Context, trace.Span) {
	return StartSpan(ctx, "trending."+kind,
		attribute.String("trending.kind", kind),
		attribute.Int("trending.limit", limit),
		attribute.Int("trending.timeframe_hours", timeframeHours),
	)
}

// RecordResult annotates span with how the result was produced
func RecordResult(span trace.Span, items int, cached, degraded bool) {
	span.SetAttributes(
		attribute.Int("result.items", items),
		attribute.Bool("result.cached", cached),
		attribute.Bool("result.degraded", degraded),
	)
}

// RecordError marks span as failed. Cancellation is recorded without the error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("canceled", true))
		return
	}
	span.SetStatus(codes.Error, err.Error())
}
