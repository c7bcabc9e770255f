// Package auth carries the caller's session and profile through a request context.
package auth

import (
	"context"

	"github.com/recetas/recetas/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	sessionContextKey contextKey = "session"
	userContextKey    contextKey = "user"
)

// ContextWithSession adds a session to the context.
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// ContextWithAccessToken adds a bare access token, as received from a
// bearer header, to the context.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return ContextWithSession(ctx, &model.Session{AccessToken: token, TokenType: "bearer"})
}

// SessionFromContext retrieves the session from the context.
// Returns nil if not present.
func SessionFromContext(ctx context.Context) *model.Session {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok {
		return nil
	}
	return session
}

// AccessTokenFromContext returns the session access token.
// Returns empty string if there is no session.
func AccessTokenFromContext(ctx context.Context) string {
	session := SessionFromContext(ctx)
	if session == nil {
		return ""
	}
	return session.AccessToken
}

// ContextWithUser adds the resolved profile to the context.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the profile from the context.
// Returns nil if not present.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// MustUserFromContext retrieves the profile from the context.
// Panics if not present (use only when the user middleware has run).
func MustUserFromContext(ctx context.Context) *model.User {
	user := UserFromContext(ctx)
	if user == nil {
		panic("user not found in context - ensure RequireUser middleware is applied")
	}
	return user
}

// UserIDFromContext returns the id of the signed-in user, looking at the
// resolved profile first and the session identity second.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return SessionFromContext(ctx).UserID()
}
