package logger

import (
	"context"

	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FromContext returns the global logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields. Empty values
// are omitted so background jobs do not log blank request ids.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 4)
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if actorID := auditcontext.ActorIDFromContext(ctx); actorID != "" {
		fields = append(fields, zap.String("actor_id", actorID))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
