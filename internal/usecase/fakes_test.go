package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/device"
	"github.com/recetas/recetas/internal/model"
)

var errBackend = errors.New("connection refused")

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// fakeIdentity is an in-memory IdentityGateway.
type fakeIdentity struct {
	mu          sync.Mutex
	signUpErr   error
	signUpNil   bool
	noSession   bool
	signInErr   error
	signOutErr  error
	refreshErr  error
	getUserErr  error
	users       map[string]*model.Identity // by access token
	signUpCalls int
	handlers    map[int]func(model.AuthChange)
	nextHandler int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users:    map[string]*model.Identity{},
		handlers: map[int]func(model.AuthChange){},
	}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, nil, f.signUpErr
	}
	if f.signUpNil {
		return nil, nil, nil
	}
	identity := &model.Identity{ID: "id-" + email, Email: email}
	if f.noSession {
		return identity, nil, nil
	}
	session := &model.Session{AccessToken: "tok-" + email, User: identity}
	f.users[session.AccessToken] = identity
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
	return &model.Session{AccessToken: "tok-" + email, User: identity}, nil
}

func (f *fakeIdentity) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &model.Session{AccessToken: "refreshed", RefreshToken: refreshToken}, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	return f.signOutErr
}

func (f *fakeIdentity) GetUser(ctx context.Context) (*model.Identity, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[auth.AccessTokenFromContext(ctx)], nil
}

func (f *fakeIdentity) OnAuthChange(handler func(model.AuthChange)) func() {
	f.mu.Lock()
	id := f.nextHandler
	f.nextHandler++
	f.handlers[id] = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

// emit delivers change synchronously to every handler.
func (f *fakeIdentity) emit(change model.AuthChange) {
	f.mu.Lock()
	hs := make([]func(model.AuthChange), 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(change)
	}
}

func (f *fakeIdentity) listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// fakeProfiles is an in-memory ProfileStore.
type fakeProfiles struct {
	mu          sync.Mutex
	profiles    map[string]*model.User
	updateErr   error
	getErr      error
	updateToken string
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*model.User{}}
}

func (f *fakeProfiles) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateToken = auth.AccessTokenFromContext(ctx)
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = &model.User{ID: userID, Role: model.RoleUser}
		f.profiles[userID] = p
	}
	p.Role = role
	return nil
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, errors.New("JSON object requested, multiple (or no) rows returned")
	}
	cp := *p
	return &cp, nil
}

// fakeStore is an in-memory RecipeStore that mimics the backend's
// ordering and containment semantics.
type fakeStore struct {
	mu      sync.Mutex
	recipes map[string]model.Recipe
	seq     int
	clock   time.Time
	err     error
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes: map[string]model.Recipe{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
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
	if s.err != nil {
		return nil, s.err
	}
	return s.sorted(func(model.Recipe) bool { return true }), nil
}

func (s *fakeStore) ListByIngredient(ctx context.Context, ingredient string) ([]model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
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
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe %s not found", id)
	}
	return &r, nil
}

func (s *fakeStore) Insert(ctx context.Context, input model.RecipeInput) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.seq++
	s.inserts++
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
	if s.err != nil {
		return nil, s.err
	}
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
	if s.err != nil {
		return s.err
	}
	delete(s.recipes, id)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recipes)
}

// fakeMedia is a MediaUploader returning a URL derived from the local URI.
type fakeMedia struct {
	err   error
	calls []string
}

func (m *fakeMedia) Upload(ctx context.Context, localURI string) (string, error) {
	m.calls = append(m.calls, localURI)
	if m.err != nil {
		return "", m.err
	}
	return "https://cdn.example.com/" + localURI, nil
}

// fakePicker scripts permission answers and pick results.
type fakePicker struct {
	libraryPerm device.Permission
	cameraPerm  device.Permission
	permErr     error
	result      device.PickResult
	launchErr   error
	launchedOpt *device.PickOptions
}

func (p *fakePicker) RequestLibraryPermission(ctx context.Context) (device.Permission, error) {
	return p.libraryPerm, p.permErr
}

func (p *fakePicker) RequestCameraPermission(ctx context.Context) (device.Permission, error) {
	return p.cameraPerm, p.permErr
}

func (p *fakePicker) LaunchLibrary(ctx context.Context, opts device.PickOptions) (device.PickResult, error) {
	p.launchedOpt = &opts
	return p.result, p.launchErr
}

func (p *fakePicker) LaunchCamera(ctx context.Context, opts device.PickOptions) (device.PickResult, error) {
	p.launchedOpt = &opts
	return p.result, p.launchErr
}

type fakeAlerter struct {
	messages []string
}

func (a *fakeAlerter) Alert(ctx context.Context, message string) {
	a.messages = append(a.messages, message)
}
