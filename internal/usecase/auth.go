package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/metrics"
	"github.com/recetas/recetas/internal/model"
)

// Auth errors.
var (
	ErrInvalidRole = errors.New("invalid role")
	ErrNoIdentity  = errors.New("could not create user")
)

// AuthUseCase signs users up, in and out and resolves their profile.
type AuthUseCase struct {
	identity IdentityGateway
	profiles ProfileStore
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewAuthUseCase creates a new AuthUseCase.
func NewAuthUseCase(identity IdentityGateway, profiles ProfileStore, recorder metrics.Recorder, logger *slog.Logger) *AuthUseCase {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthUseCase{
		identity: identity,
		profiles: profiles,
		metrics:  recorder,
		logger:   logger.With("component", "auth"),
	}
}

// Register creates the identity and then sets the role on the profile row
// the service created for it. The two calls are not atomic: when the role
// update fails the identity stays created and the result is a failure.
func (u *AuthUseCase) Register(ctx context.Context, email, password string, role model.Role) Result[*model.Identity] {
	if !role.IsValid() {
		return Fail[*model.Identity](fmt.Errorf("%w: %q", ErrInvalidRole, role))
	}

	identity, session, err := u.identity.SignUp(ctx, email, password)
	if err != nil {
		u.metrics.IncAuthFailure("register")
		return Fail[*model.Identity](err)
	}
	if identity == nil {
		u.metrics.IncAuthFailure("register")
		return Fail[*model.Identity](ErrNoIdentity)
	}

	// The role update runs as the new user when the service issued a session.
	if session != nil {
		ctx = auth.ContextWithSession(ctx, session)
	}
	if err := u.profiles.UpdateRole(ctx, identity.ID, role); err != nil {
		u.metrics.IncAuthFailure("register")
		u.logger.Warn("identity created but role update failed",
			slog.String("user_id", identity.ID),
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
		return Fail[*model.Identity](err)
	}

	u.logger.Info("user registered", slog.String("user_id", identity.ID), slog.String("role", string(role)))
	return OK(identity)
}

// SignIn authenticates with email and password.
func (u *AuthUseCase) SignIn(ctx context.Context, email, password string) Result[*model.Session] {
	session, err := u.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		u.metrics.IncAuthFailure("signin")
		return Fail[*model.Session](err)
	}
	return OK(session)
}

// SignOut ends the current session.
func (u *AuthUseCase) SignOut(ctx context.Context) Result[Empty] {
	if err := u.identity.SignOut(ctx); err != nil {
		u.metrics.IncAuthFailure("signout")
		return Fail[Empty](err)
	}
	return OK(Empty{})
}

// RefreshSession exchanges a refresh token for a new session. An empty
// token refreshes the stored session, if the gateway keeps one.
func (u *AuthUseCase) RefreshSession(ctx context.Context, refreshToken string) Result[*model.Session] {
	session, err := u.identity.RefreshSession(ctx, refreshToken)
	if err != nil {
		u.metrics.IncAuthFailure("refresh")
		return Fail[*model.Session](err)
	}
	return OK(session)
}

// GetCurrentUser returns the profile of the signed-in user, or nil when
// there is no session. Failures are logged and reported as nil.
func (u *AuthUseCase) GetCurrentUser(ctx context.Context) *model.User {
	identity, err := u.identity.GetUser(ctx)
	if err != nil {
		u.readFailed(err, "")
		return nil
	}
	if identity == nil {
		return nil
	}

	profile, err := u.profiles.GetProfile(ctx, identity.ID)
	if err != nil {
		u.readFailed(err, identity.ID)
		return nil
	}
	return profile
}

func (u *AuthUseCase) readFailed(err error, userID string) {
	u.metrics.IncReadFailure(metrics.ReadCurrentUser)
	u.logger.Error("failed to get current user",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}

// SubscribeOption configures OnAuthStateChange.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	userID string
}

// ForUser only delivers changes affecting userID.
func ForUser(userID string) SubscribeOption {
	return func(c *subscribeConfig) { c.userID = userID }
}

// Subscription is a registered auth state listener. It stays active until
// Unsubscribe is called.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Unsubscribe releases the listener. Calling it more than once is safe.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// OnAuthStateChange calls callback with the refreshed profile on every
// change that leaves a session, and with nil on every change that does not.
func (u *AuthUseCase) OnAuthStateChange(callback func(*model.User), opts ...SubscribeOption) *Subscription {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cancel := u.identity.OnAuthChange(func(change model.AuthChange) {
		if cfg.userID != "" && change.UserID != cfg.userID {
			return
		}
		u.metrics.IncAuthEvent(string(change.Event))

		if change.Session == nil || change.Session.AccessToken == "" {
			callback(nil)
			return
		}
		ctx := auth.ContextWithSession(context.Background(), change.Session)
		callback(u.GetCurrentUser(ctx))
	})
	return &Subscription{cancel: cancel}
}
