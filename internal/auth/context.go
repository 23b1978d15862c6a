// ABOUTME: Session context for tracking identity through request handlers
// ABOUTME: Provides WithSession/FromContext for propagating claims via context

package auth

import (
	"context"
)

// sessionContextKey is the key type for storing Claims in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the session claims attached.
func WithSession(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, claims)
}

// FromContext retrieves the session claims, returning nil if not present.
func FromContext(ctx context.Context) *Claims {
	val := ctx.Value(sessionContextKey{})
	if val == nil {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// MustFromContext retrieves the session claims, panicking if not present.
// Use only behind Middleware, which guarantees the claims are set.
func MustFromContext(ctx context.Context) *Claims {
	claims := FromContext(ctx)
	if claims == nil {
		panic("auth: session claims not found in context")
	}
	return claims
}
