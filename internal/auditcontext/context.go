package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorIDKey
	ipAddressKey
	userAgentKey
)

// SystemActor identifies writes performed by scheduled jobs.
const SystemActor = "system"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

// ActorIDFromContext returns the acting user, or an empty string when none was set.
func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, actorIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	return stringValue(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(ua))
}

func UserAgentFromContext(ctx context.Context) string {
	return stringValue(ctx, userAgentKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
