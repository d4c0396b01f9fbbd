package tracing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request, continuing any W3C trace the
// caller propagated. Register it after the request logger so the request id is
// on the context.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(instrumentationName + "/http")

	return func(c *gin.Context) {
		parent := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if id := auditcontext.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		began := time.Now()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := routeOf(c)
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(began).Milliseconds()),
		)...)

		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// routeOf names the span by route template so invoice and payment ids do not
// explode span cardinality.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
