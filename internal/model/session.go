package model

import "time"

// Session is an authenticated identity-service session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
	User         *Identity `json:"user"`
}

// Expired reports whether the access token is past its expiry.
// A session without an expiry never expires locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Unix() >= s.ExpiresAt
}

// UserID returns the identity id carried by the session.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// AuthChangeEvent names a session transition.
type AuthChangeEvent string

const (
	AuthSignedIn       AuthChangeEvent = "SIGNED_IN"
	AuthSignedOut      AuthChangeEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthChangeEvent = "USER_UPDATED"
)

// AuthChange is a single session-change notification.
// Session is nil when the change leaves no active session.
type AuthChange struct {
	ID         string          `json:"id"`
	Event      AuthChangeEvent `json:"event"`
	UserID     string          `json:"user_id"`
	Session    *Session        `json:"session,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
