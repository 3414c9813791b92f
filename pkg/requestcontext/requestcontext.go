// Package requestcontext carries request-scoped values (request ID, caller, clock)
// through context.Context so services never reach for globals.
package requestcontext

import (
	"context"
	"time"
)

type (
	contextKeyRequestID   struct{}
	contextKeyRequestTime struct{}
	contextKeyCaller      struct{}
	contextKeyClientIP    struct{}
)

// WithRequestID stores the correlation ID for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the correlation ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins "now" for everything downstream of ctx.
// HTTP requests get it from the requesttime middleware; tests and workers set it directly.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// Now returns the request-scoped time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithCaller stores the authenticated caller's external identifier.
func WithCaller(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, contextKeyCaller{}, externalID)
}

// Caller returns the authenticated caller's external identifier, or "".
func Caller(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyCaller{}).(string); ok {
		return v
	}
	return ""
}

// WithClientIP stores the remote address the request arrived from.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyClientIP{}, ip)
}

// ClientIP returns the remote address, or "".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return v
	}
	return ""
}
