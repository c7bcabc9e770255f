package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/model"
)

const testAnonKey = "anon-key"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// fakeProject is an httptest stand-in for a Supabase project.
type fakeProject struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeProject(t *testing.T) *fakeProject {
	t.Helper()
	f := &fakeProject{t: t, handlers: map[string]http.HandlerFunc{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		h, ok := f.handlers[r.Method+" "+r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProject) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
}

func (f *fakeProject) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests, "no request recorded")
	return f.requests[len(f.requests)-1]
}

func (f *fakeProject) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func respondJSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func newTestClient(t *testing.T, f *fakeProject, opts ...Option) *Client {
	t.Helper()
	c, err := New(f.server.URL, testAnonKey, opts...)
	require.NoError(t, err)
	return c
}

func testSession(userID string) map[string]any {
	return map[string]any{
		"access_token":  "access-" + userID,
		"refresh_token": "refresh-" + userID,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": userID, "email": userID + "@example.com"},
	}
}

func TestNew_RequiresURLAndKey(t *testing.T) {
	t.Parallel()

	_, err := New("", testAnonKey)
	assert.ErrorIs(t, err, ErrMissingURL)

	_, err = New("https://example.supabase.co", " ")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = New("not a url", testAnonKey)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestClient_SendsKeyAndAnonBearerWithoutSession(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodGet, "/auth/v1/health", respondJSON(http.StatusOK, map[string]string{"name": "GoTrue"}))
	c := newTestClient(t, f)

	require.NoError(t, c.Ping(context.Background()))

	req := f.last()
	assert.Equal(t, testAnonKey, req.Header.Get("apikey"))
	assert.Equal(t, "Bearer "+testAnonKey, req.Header.Get("Authorization"))
	assert.Equal(t, userAgent, req.Header.Get("User-Agent"))
}

func TestClient_ContextTokenWinsOverStore(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodGet, "/auth/v1/health", respondJSON(http.StatusOK, nil))
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &model.Session{AccessToken: "stored"}))
	c := newTestClient(t, f, WithSessionStore(store))

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "Bearer stored", f.last().Header.Get("Authorization"))

	ctx := auth.ContextWithAccessToken(context.Background(), "from-request")
	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, "Bearer from-request", f.last().Header.Get("Authorization"))
}

func TestSignInWithPassword_StoresAndPublishes(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/token", respondJSON(http.StatusOK, testSession("u1")))

	store := NewMemoryStore()
	bus := NewBus()
	got := make(chan model.AuthChange, 1)
	cancel := bus.Subscribe(func(change model.AuthChange) { got <- change })
	defer cancel()

	c := newTestClient(t, f, WithSessionStore(store), WithNotifier(bus))
	c.now = func() time.Time { return time.Unix(1000, 0) }

	session, err := c.SignInWithPassword(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access-u1", session.AccessToken)
	assert.Equal(t, int64(4600), session.ExpiresAt)
	assert.Equal(t, "u1", session.UserID())

	req := f.last()
	assert.Equal(t, "grant_type=password", req.Query)
	assert.JSONEq(t, `{"email":"u1@example.com","password":"secret"}`, string(req.Body))

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-u1", stored.AccessToken)

	select {
	case change := <-got:
		assert.Equal(t, model.AuthSignedIn, change.Event)
		assert.Equal(t, "u1", change.UserID)
		assert.NotEmpty(t, change.ID)
	case <-time.After(time.Second):
		t.Fatal("no auth change published")
	}
}

func TestSignInWithPassword_ServiceMessage(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/token", respondJSON(http.StatusBadRequest, map[string]string{
		"error":             "invalid_grant",
		"error_description": "Invalid login credentials",
	}))
	c := newTestClient(t, f)

	_, err := c.SignInWithPassword(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
}

func TestSignUp_PendingConfirmationReturnsIdentityOnly(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/signup", respondJSON(http.StatusOK, map[string]any{
		"id":    "u2",
		"email": "u2@example.com",
	}))
	store := NewMemoryStore()
	c := newTestClient(t, f, WithSessionStore(store))

	identity, session, err := c.SignUp(context.Background(), "u2@example.com", "secret1")
	require.NoError(t, err)
	assert.Nil(t, session)
	require.NotNil(t, identity)
	assert.Equal(t, "u2", identity.ID)

	stored, _ := store.Load(context.Background())
	assert.Nil(t, stored)
}

func TestSignUp_AutoConfirmedReturnsSession(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/signup", respondJSON(http.StatusOK, testSession("u3")))
	c := newTestClient(t, f)

	identity, session, err := c.SignUp(context.Background(), "u3@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "u3", identity.ID)
}

func TestSignUp_WeakPassword(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/signup", respondJSON(http.StatusUnprocessableEntity, map[string]any{
		"code":       422,
		"error_code": "weak_password",
		"msg":        "Password should be at least 6 characters.",
	}))
	c := newTestClient(t, f)

	_, _, err := c.SignUp(context.Background(), "a@b.c", "123")
	require.Error(t, err)
	assert.Equal(t, "Password should be at least 6 characters.", err.Error())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "weak_password", apiErr.Code)
}

func TestRefreshSession_UsesStoredToken(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/token", respondJSON(http.StatusOK, testSession("u4")))
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &model.Session{AccessToken: "old", RefreshToken: "r-old"}))
	c := newTestClient(t, f, WithSessionStore(store))

	session, err := c.RefreshSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "access-u4", session.AccessToken)

	req := f.last()
	assert.Equal(t, "grant_type=refresh_token", req.Query)
	assert.JSONEq(t, `{"refresh_token":"r-old"}`, string(req.Body))
}

func TestRefreshSession_NoToken(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	c := newTestClient(t, f)

	_, err := c.RefreshSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, f.count())
}

func TestSignOut_RevokesClearsAndPublishes(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodPost, "/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &model.Session{
		AccessToken: "tok",
		User:        &model.Identity{ID: "u5"},
	}))
	bus := NewBus()
	got := make(chan model.AuthChange, 1)
	defer bus.Subscribe(func(change model.AuthChange) { got <- change })()

	c := newTestClient(t, f, WithSessionStore(store), WithNotifier(bus))
	require.NoError(t, c.SignOut(context.Background()))

	assert.Equal(t, "Bearer tok", f.last().Header.Get("Authorization"))
	stored, _ := store.Load(context.Background())
	assert.Nil(t, stored)

	select {
	case change := <-got:
		assert.Equal(t, model.AuthSignedOut, change.Event)
		assert.Equal(t, "u5", change.UserID)
		assert.Nil(t, change.Session)
	case <-time.After(time.Second):
		t.Fatal("no sign-out published")
	}
}

func TestSignOut_WithoutSessionSkipsRemoteCall(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	c := newTestClient(t, f)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Zero(t, f.count())
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	f := newFakeProject(t)
	f.handle(http.MethodGet, "/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			respondJSON(http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})(w, r)
			return
		}
		respondJSON(http.StatusOK, map[string]any{"id": "u6", "email": "u6@example.com"})(w, r)
	})
	c := newTestClient(t, f)

	identity, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity, "no session means no identity")
	assert.Zero(t, f.count())

	identity, err = c.GetUser(auth.ContextWithAccessToken(context.Background(), "expired"))
	require.NoError(t, err)
	assert.Nil(t, identity)

	identity, err = c.GetUser(auth.ContextWithAccessToken(context.Background(), "good"))
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "u6", identity.ID)
}

func TestDecodeAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
	}{
		{"gotrue msg", 400, `{"code":400,"msg":"User already registered"}`, "User already registered", "400"},
		{"postgrest", 406, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows"}`, "JSON object requested, multiple (or no) rows returned", "PGRST116"},
		{"plain text", 502, "bad gateway", "bad gateway", ""},
		{"empty", 503, "", "Service Unavailable", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := decodeAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.status, err.Status)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(&APIError{Status: http.StatusNotAcceptable, Code: "PGRST116"}))
	assert.True(t, IsNotFound(&APIError{Status: http.StatusNotFound}))
	assert.False(t, IsNotFound(&APIError{Status: http.StatusBadRequest}))
	assert.False(t, IsNotFound(io.EOF))
}
