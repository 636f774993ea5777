// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free of
// net/http lets the compliance services depend on it directly.
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject a fixed clock with requestcontext.WithTime.
package requestcontext

import (
	"context"
	"time"
)

type (
	actorKey          struct{}
	clientIPKey       struct{}
	acceptLanguageKey struct{}
	userAgentKey      struct{}
	requestIDKey      struct{}
	requestTimeKey    struct{}
)

// Actor retrieves the identity of the caller performing the operation
// (an application user or service account). Recorded as the audit user id.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the calling actor into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// -----------------------------------------------------------------------------
// Client metadata (region inference inputs)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// AcceptLanguage retrieves the raw Accept-Language header value.
func AcceptLanguage(ctx context.Context) string {
	if v, ok := ctx.Value(acceptLanguageKey{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent retrieves the User-Agent string from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP, Accept-Language and User-Agent into the context.
func WithClientMetadata(ctx context.Context, clientIP, acceptLanguage, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, acceptLanguageKey{}, acceptLanguage)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request-scoped time, falling back to time.Now().
// Services use it so a single operation sees one consistent clock and tests
// can pin time.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}

// WithTime injects a request timestamp into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
