// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware and read by services.
//
// Usage in services:
//
//	actor, ok := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"housing/pkg/domain"
)

type (
	actorKey       struct{}
	sessionKeyKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	userAgentKey   struct{}
)

var (
	ContextKeyActor       = actorKey{}
	ContextKeySessionKey  = sessionKeyKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyUserAgent   = userAgentKey{}
)

// Actor returns the identity the gateway authorized for this request.
func Actor(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ContextKeyActor).(domain.Actor)
	return a, ok
}

// WithActor injects the authorized actor. Only the gateway middleware and
// tests should call this.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// SessionKey returns the opaque key under which the caller's credential is
// persisted.
func SessionKey(ctx context.Context) string {
	if k, ok := ctx.Value(ContextKeySessionKey).(string); ok {
		return k
	}
	return ""
}

func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ContextKeySessionKey, key)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ContextKeyUserAgent, ua)
}

// Now retrieves the request-scoped time, falling back to time.Now() for
// workers and tests that did not inject one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for a request, batch or test.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
