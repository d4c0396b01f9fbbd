package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "rentledger"

// StartSpan starts an internal span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(SafeAttributes(attrs...)...))
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		if safe := SafeError(err); safe != nil {
			span.RecordError(safe)
		}
		span.SetStatus(codes.Error, "error")
	}
	span.End()
}

func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"invoice_id":              {},
	"payment_id":              {},
	"lease_id":                {},
	"entity_id":               {},
	"source_type":             {},
	"job":                     {},
}

// SafeAttributes keeps only attributes that carry identifiers, never amounts or
// free text such as references and reversal reasons.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError strips the error chain down to its outermost message type.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return errors.New(err.Error())
}
