package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/middleware"
	"github.com/recetas/recetas/internal/model"
	"github.com/recetas/recetas/internal/supabase"
	"github.com/recetas/recetas/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeIdentity is an IdentityGateway keyed by access token. Auth changes
// travel over a real in-process bus.
type fakeIdentity struct {
	mu        sync.Mutex
	bus       *supabase.Bus
	users     map[string]*model.Identity
	signInErr error
	signUpErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		bus:   supabase.NewBus(),
		users: map[string]*model.Identity{},
	}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	if f.signUpErr != nil {
		return nil, nil, f.signUpErr
	}
	identity := &model.Identity{ID: "id-" + email, Email: email}
	session := &model.Session{AccessToken: "tok-" + email, User: identity}
	f.mu.Lock()
	f.users[session.AccessToken] = identity
	f.mu.Unlock()
	return identity, session, nil
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	identity := &model.Identity{ID: "id-" + email, Email: email}
	f.mu.Lock()
	f.users["tok-"+email] = identity
	f.mu.Unlock()
	return &model.Session{AccessToken: "tok-" + email, RefreshToken: "ref-" + email, User: identity}, nil
}

func (f *fakeIdentity) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken != "ref-valid" {
		return nil, errors.New("Invalid Refresh Token: Refresh Token Not Found")
	}
	return &model.Session{AccessToken: "tok-refreshed", RefreshToken: "ref-next"}, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, auth.AccessTokenFromContext(ctx))
	return nil
}

func (f *fakeIdentity) GetUser(ctx context.Context) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[auth.AccessTokenFromContext(ctx)], nil
}

func (f *fakeIdentity) OnAuthChange(handler func(model.AuthChange)) func() {
	return f.bus.Subscribe(handler)
}

// login registers a session token for an existing profile.
func (f *fakeIdentity) login(token string, user *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = &model.Identity{ID: user.ID, Email: user.Email}
}

// fakeProfiles is an in-memory ProfileStore.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.User
}

func newFakeProfiles(users ...*model.User) *fakeProfiles {
	p := &fakeProfiles{profiles: map[string]*model.User{}}
	for _, u := range users {
		p.profiles[u.ID] = u
	}
	return p
}

func (p *fakeProfiles) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.profiles[userID]
	if !ok {
		u = &model.User{ID: userID}
		p.profiles[userID] = u
	}
	u.Role = role
	return nil
}

func (p *fakeProfiles) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.profiles[userID]
	if !ok {
		return nil, errors.New("profile not found")
	}
	cp := *u
	return &cp, nil
}

// fakeStore is an in-memory RecipeStore, newest first.
type fakeStore struct {
	mu      sync.Mutex
	recipes map[string]model.Recipe
	seq     int
	clock   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes: map[string]model.Recipe{},
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) sorted(keep func(model.Recipe) bool) []model.Recipe {
	out := []model.Recipe{}
	for _, r := range s.recipes {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) List(ctx context.Context) ([]model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(model.Recipe) bool { return true }), nil
}

func (s *fakeStore) ListByIngredient(ctx context.Context, ingredient string) ([]model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(r model.Recipe) bool {
		for _, ing := range r.Ingredients {
			if ing == ingredient {
				return true
			}
		}
		return false
	}), nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe %s not found", id)
	}
	return &r, nil
}

func (s *fakeStore) Insert(ctx context.Context, input model.RecipeInput) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.clock = s.clock.Add(time.Minute)
	r := model.Recipe{
		ID:          fmt.Sprintf("r%d", s.seq),
		Title:       input.Title,
		Description: input.Description,
		Ingredients: input.Ingredients,
		ChefID:      input.ChefID,
		ImageURL:    input.ImageURL,
		CreatedAt:   s.clock,
	}
	s.recipes[r.ID] = r
	return &r, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe %s not found", id)
	}
	r.Title = patch.Title
	r.Description = patch.Description
	r.Ingredients = patch.Ingredients
	if patch.ImageURL != nil {
		r.ImageURL = patch.ImageURL
	}
	s.recipes[id] = r
	return &r, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recipes, id)
	return nil
}

// fakeMedia records the spooled file it was handed while it still exists.
type fakeMedia struct {
	mu      sync.Mutex
	paths   []string
	content []byte
}

func (m *fakeMedia) Upload(ctx context.Context, localURI string) (string, error) {
	data, err := os.ReadFile(localURI)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, localURI)
	m.content = data
	return "https://res.cloudinary.com/demo/image/upload/v1/recipe.jpg", nil
}

// fakeInvalidator records dropped users.
type fakeInvalidator struct {
	mu      sync.Mutex
	dropped []string
}

func (f *fakeInvalidator) InvalidateUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, userID)
	return nil
}

var (
	testChef  = &model.User{ID: "chef-1", Email: "ana@example.com", Role: model.RoleChef}
	otherChef = &model.User{ID: "chef-2", Email: "luis@example.com", Role: model.RoleChef}
	testUser  = &model.User{ID: "user-1", Email: "eva@example.com", Role: model.RoleUser}
)

// testEnv wires the real use-cases over fakes behind a router shaped like
// the API server's.
type testEnv struct {
	identity *fakeIdentity
	profiles *fakeProfiles
	store    *fakeStore
	media    *fakeMedia
	dropped  *fakeInvalidator
	authH    *AuthHandler
	recipeH  *RecipeHandler
	router   chi.Router
}

func newTestEnv() *testEnv {
	env := &testEnv{
		identity: newFakeIdentity(),
		profiles: newFakeProfiles(testChef, otherChef, testUser),
		store:    newFakeStore(),
		media:    &fakeMedia{},
		dropped:  &fakeInvalidator{},
	}
	env.identity.login("chef-token", testChef)
	env.identity.login("other-token", otherChef)
	env.identity.login("user-token", testUser)

	logger := discardLogger()
	authUC := usecase.NewAuthUseCase(env.identity, env.profiles, nil, logger)
	recipeUC := usecase.NewRecipeUseCase(env.store, usecase.WithMedia(env.media), usecase.WithLogger(logger))

	env.authH = NewAuthHandler(authUC, env.dropped, logger)
	env.recipeH = NewRecipeHandler(recipeUC, logger)

	requireUser := middleware.RequireUser(middleware.AuthConfig{Logger: logger, Users: authUC})
	h := New()

	r := chi.NewRouter()
	r.Use(middleware.BearerToken)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", env.authH.SignUp)
			r.Post("/signin", env.authH.SignIn)
			r.Post("/refresh", env.authH.Refresh)
			r.Get("/me", env.authH.Me)
			r.With(requireUser).Post("/signout", env.authH.SignOut)
			r.With(requireUser).Get("/events", env.authH.Events)
		})
		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", env.recipeH.List)
			r.Get("/{id}", env.recipeH.Get)
			r.Group(func(r chi.Router) {
				r.Use(requireUser, middleware.RequireChef)
				r.Post("/", env.recipeH.Create)
				r.Put("/{id}", env.recipeH.Update)
				r.Delete("/{id}", env.recipeH.Delete)
			})
		})
	})
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	env.router = r
	return env
}

// seed stores a recipe owned by chefID.
func (e *testEnv) seed(chefID, title string, ingredients ...string) model.Recipe {
	r, _ := e.store.Insert(context.Background(), model.RecipeInput{
		Title:       title,
		Description: "Mix and cook.",
		Ingredients: ingredients,
		ChefID:      chefID,
	})
	return *r
}
