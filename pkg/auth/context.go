package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys in this package.
type contextKey int

const userKey contextKey = iota

// User is the authenticated caller attached to a request context.
type User struct {
	ID        string
	TokenKind TokenKind
}

// ContextWithUser returns a copy of ctx carrying u.
func ContextWithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user stored by the auth middleware.
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    return errors.Unauthorized("no user in context")
//	}
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// MustUserFromContext is UserFromContext for handlers mounted behind the
// middleware. It panics when no user is present.
func MustUserFromContext(ctx context.Context) User {
	u, ok := UserFromContext(ctx)
	if !ok {
		panic("auth: no user in context; ensure authentication middleware is configured")
	}
	return u
}

// TraceIDFromContext returns the hex trace ID of the active span, if any.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
