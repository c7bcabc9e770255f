package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/model"
)

// UserResolver resolves the profile of the session carried by ctx.
// It returns nil when the token is missing, invalid or expired.
type UserResolver interface {
	GetCurrentUser(ctx context.Context) *model.User
}

// ProfileCache caches resolved profiles per access token.
type ProfileCache interface {
	GetProfile(ctx context.Context, accessToken string) (*model.User, error)
	SetProfile(ctx context.Context, accessToken string, user *model.User) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Users  UserResolver
	// Cache is optional.
	Cache ProfileCache
}

// BearerToken copies the bearer token of the Authorization header into the
// request context. Requests without one pass through unauthenticated.
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractBearerToken(r); token != "" {
			r = r.WithContext(auth.ContextWithAccessToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser returns a middleware that resolves the caller's profile and
// injects it into the request. Must be applied after BearerToken.
func RequireUser(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := auth.AccessTokenFromContext(ctx)
			if token == "" {
				logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(ctx)),
				)
				writeAuthError(w)
				return
			}

			// Check cache first
			if cfg.Cache != nil {
				if user, _ := cfg.Cache.GetProfile(ctx, token); user != nil {
					logger.Debug("authentication successful",
						slog.String("user_id", user.ID),
						slog.Bool("cache_hit", true),
						slog.String("request_id", GetRequestID(ctx)),
					)
					next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(ctx, user)))
					return
				}
			}

			user := cfg.Users.GetCurrentUser(ctx)
			if user == nil {
				logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(ctx)),
				)
				writeAuthError(w)
				return
			}

			if cfg.Cache != nil {
				if err := cfg.Cache.SetProfile(ctx, token, user); err != nil {
					logger.Warn("failed to cache profile",
						slog.String("user_id", user.ID),
						slog.String("error", err.Error()),
					)
				}
			}

			logger.Debug("authentication successful",
				slog.String("user_id", user.ID),
				slog.String("role", string(user.Role)),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(ctx)),
			)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(ctx, user)))
		})
	}
}

// RequireChef rejects callers whose profile is not a chef.
// Must be applied after RequireUser.
func RequireChef(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			writeAuthError(w)
			return
		}
		if !user.IsChef() {
			writeForbidden(w, "Only chefs can manage recipes")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token of an "Authorization: Bearer <token>" header.
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="recetas"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing access token"}}`))
}

// writeForbidden writes a 403 Forbidden response.
func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN","message":"` + message + `"}}`))
}
