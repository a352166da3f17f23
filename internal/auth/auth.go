// Package auth provides authentication and user context management.
package auth

import (
	"context"
	"crypto/subtle"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the context key for storing the user value.
	userContextKey contextKey = "user"
)

// ValidateToken performs constant-time comparison of the provided token
// against the expected token to prevent timing attacks.
func ValidateToken(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// UserFromContext retrieves the user value from the context.
// Returns empty string if no user is set.
func UserFromContext(ctx context.Context) string {
	user, ok := ctx.Value(userContextKey).(string)
	if !ok {
		return ""
	}
	return user
}

// WithUser returns a new context with the user value set.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
