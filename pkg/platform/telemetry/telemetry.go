// Package telemetry wraps the OpenTelemetry API for services. Without an SDK
// registered the global provider is a no-op, so spans cost nothing in tests.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrRequestID   = "housing.request_id"
	AttrRequestKind = "housing.request_kind"
	AttrAction      = "housing.action"
	AttrArea        = "housing.area"
	AttrRole        = "housing.role"
	AttrOutcome     = "housing.outcome"
)

// StartSpan starts a span on the named tracer with initial attributes.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
