package supabase

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/model"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpResponse is either a full session (auto-confirmed projects) or a
// bare user object (email confirmation pending).
type signUpResponse struct {
	model.Session
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    *time.Time     `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SignUp creates an identity. The session is nil when the project requires
// email confirmation before the first sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil, credentials{Email: email, Password: password})
	if err != nil {
		return nil, nil, err
	}

	var resp signUpResponse
	if err := c.do(req, &resp); err != nil {
		return nil, nil, err
	}

	if resp.AccessToken != "" && resp.User != nil {
		session := resp.Session
		c.fillExpiry(&session)
		c.establish(ctx, model.AuthSignedIn, &session)
		return session.User, &session, nil
	}

	if resp.ID == "" {
		return nil, nil, nil
	}
	return &model.Identity{
		ID:           resp.ID,
		Email:        resp.Email,
		CreatedAt:    resp.CreatedAt,
		UserMetadata: resp.UserMetadata,
	}, nil, nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	query := url.Values{"grant_type": {"password"}}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", query, credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	c.fillExpiry(&session)
	c.establish(ctx, model.AuthSignedIn, &session)
	return &session, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		if stored := c.storedSession(ctx); stored != nil {
			refreshToken = stored.RefreshToken
		}
	}
	if refreshToken == "" {
		return nil, ErrNoSession
	}

	query := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]string{"refresh_token": refreshToken}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", query, body)
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	c.fillExpiry(&session)
	c.establish(ctx, model.AuthTokenRefreshed, &session)
	return &session, nil
}

// SignOut revokes the current session. Without a user session there is
// nothing to revoke remotely and only local state is cleared.
func (c *Client) SignOut(ctx context.Context) error {
	userID := auth.UserIDFromContext(ctx)
	stored := c.storedSession(ctx)
	if userID == "" {
		userID = stored.UserID()
	}

	token := auth.AccessTokenFromContext(ctx)
	if token == "" && stored != nil {
		token = stored.AccessToken
	}

	if token != "" {
		req, err := c.newRequest(auth.ContextWithAccessToken(ctx, token), http.MethodPost, "/auth/v1/logout", nil, nil)
		if err != nil {
			return err
		}
		if err := c.do(req, nil); err != nil && !IsUnauthorized(err) && !IsNotFound(err) {
			return err
		}
	}

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear stored session", slog.String("error", err.Error()))
		}
	}
	c.publish(ctx, model.AuthSignedOut, userID, nil)
	return nil
}

// GetUser asks the identity service who the current session belongs to.
// Returns nil without error when there is no session.
func (c *Client) GetUser(ctx context.Context) (*model.Identity, error) {
	if c.accessToken(ctx) == c.anonKey {
		return nil, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}

	var identity model.Identity
	if err := c.do(req, &identity); err != nil {
		if IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	if identity.ID == "" {
		return nil, nil
	}
	return &identity, nil
}

// OnAuthChange registers a handler for session changes and returns the
// function that releases it.
func (c *Client) OnAuthChange(handler func(model.AuthChange)) (cancel func()) {
	return c.notifier.Subscribe(handler)
}

// fillExpiry derives expires_at from expires_in when the service omitted it.
func (c *Client) fillExpiry(session *model.Session) {
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = c.now().Unix() + session.ExpiresIn
	}
}

// establish remembers the session and announces it.
func (c *Client) establish(ctx context.Context, event model.AuthChangeEvent, session *model.Session) {
	if c.store != nil {
		if err := c.store.Save(ctx, session); err != nil {
			c.logger.Warn("failed to persist session", slog.String("error", err.Error()))
		}
	}
	c.publish(ctx, event, session.UserID(), session)
}

func (c *Client) publish(ctx context.Context, event model.AuthChangeEvent, userID string, session *model.Session) {
	change := model.AuthChange{
		ID:         ulid.Make().String(),
		Event:      event,
		UserID:     userID,
		Session:    session,
		OccurredAt: c.now().UTC(),
	}
	if err := c.notifier.Publish(ctx, change); err != nil {
		c.logger.Warn("failed to publish auth change",
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
	}
}
