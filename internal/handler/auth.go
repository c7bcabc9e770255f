package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/handler/dto"
	"github.com/recetas/recetas/internal/model"
	"github.com/recetas/recetas/internal/usecase"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 25 * time.Second

// ProfileInvalidator drops cached profiles of a user.
type ProfileInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// AuthHandler handles HTTP requests for account operations.
type AuthHandler struct {
	uc        *usecase.AuthUseCase
	profiles  ProfileInvalidator
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewAuthHandler creates a new AuthHandler. profiles may be nil.
func NewAuthHandler(uc *usecase.AuthUseCase, profiles ProfileInvalidator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		uc:        uc,
		profiles:  profiles,
		logger:    logger.With("component", "auth_handler"),
		heartbeat: heartbeatInterval,
	}
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		handleDecodeError(w, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}
	if !req.Role.IsValid() {
		writeFailure(w, http.StatusUnprocessableEntity, fmt.Sprintf("role must be %q or %q", model.RoleChef, model.RoleUser))
		return
	}

	result := h.uc.Register(r.Context(), req.Email, req.Password, req.Role)
	writeResult(w, result, http.StatusCreated, http.StatusBadRequest)
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		handleDecodeError(w, err)
		return
	}

	result := h.uc.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password)
	writeResult(w, result, http.StatusOK, http.StatusUnauthorized)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		handleDecodeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		writeFailure(w, http.StatusUnprocessableEntity, "refresh_token is required")
		return
	}

	result := h.uc.RefreshSession(r.Context(), req.RefreshToken)
	writeResult(w, result, http.StatusOK, http.StatusUnauthorized)
}

// SignOut handles POST /api/v1/auth/signout. Requires RequireUser.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustUserFromContext(ctx)

	result := h.uc.SignOut(ctx)
	if result.Ok() && h.profiles != nil {
		if err := h.profiles.InvalidateUser(ctx, user.ID); err != nil {
			h.logger.Warn("failed to drop cached profile",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	writeResult(w, result, http.StatusOK, http.StatusBadRequest)
}

// Me handles GET /api/v1/auth/me. It answers 204 when the request carries
// no valid session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.uc.GetCurrentUser(r.Context())
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, usecase.OK(user))
}

// Events handles GET /api/v1/auth/events. It streams the caller's auth
// state changes as server-sent events until the client disconnects.
// Requires RequireUser.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustUserFromContext(ctx)

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	done := make(chan struct{})
	defer close(done)

	events := make(chan *model.User, 8)
	sub := h.uc.OnAuthStateChange(func(u *model.User) {
		select {
		case events <- u:
		case <-done:
		}
	}, usecase.ForUser(user.ID))
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream not supported", slog.String("error", err.Error()))
		return
	}

	h.logger.Debug("event stream opened", slog.String("user_id", user.ID))
	defer h.logger.Debug("event stream closed", slog.String("user_id", user.ID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case u := <-events:
			seq++
			if err := writeEvent(w, seq, dto.AuthEvent{User: u}); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, id int, event dto.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: auth\ndata: %s\n\n", id, data)
	return err
}
