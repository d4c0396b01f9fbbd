package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const RequestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	// Debug adds the raw error and query string to request lines.
	Debug bool
	// ErrorClassifier maps the last handler error to (type, code) log fields.
	ErrorClassifier func(err error) (string, string)
}

// probeRoutes are polled by infrastructure and logged at debug only.
var probeRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// GinMiddleware seeds the audit context (request id, client ip, user agent) and
// writes one "http_request" line when the handler chain returns.
func GinMiddleware(base *zap.Logger, cfg MiddlewareConfig) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		began := time.Now()
		requestID := requestIDFor(c)

		ctx := auditcontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(began).Milliseconds()),
		}
		if cfg.Debug && c.Request.URL.RawQuery != "" {
			fields = append(fields, zap.String("query", c.Request.URL.RawQuery))
		}
		if last := c.Errors.Last(); last != nil {
			if cfg.ErrorClassifier != nil {
				errType, errCode := cfg.ErrorClassifier(last.Err)
				fields = append(fields, zap.String("error_type", errType), zap.String("error_code", errCode))
			}
			if cfg.Debug {
				fields = append(fields, zap.Error(last.Err))
			}
		}

		if ce := WithContext(c.Request.Context(), base).Check(requestLevel(route, status), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestLevel(route string, status int) zapcore.Level {
	if _, ok := probeRoutes[route]; ok {
		return zapcore.DebugLevel
	}
	if status >= http.StatusInternalServerError {
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// requestIDFor honours a caller supplied id and echoes it back.
func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(RequestIDHeader, id)
	return id
}
