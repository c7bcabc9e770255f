package supabase

import (
	"context"
	"strings"

	"github.com/recetas/recetas/internal/model"
)

// Profiles reads and updates the application's profile table.
type Profiles struct {
	client *Client
	table  string
}

// NewProfiles binds the profile table.
func NewProfiles(client *Client, table string) *Profiles {
	return &Profiles{client: client, table: table}
}

// UpdateRole sets the role on the profile row of userID.
func (p *Profiles) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	return p.client.From(p.table).
		Update(map[string]string{"role": string(role)}).
		Eq("id", userID).
		Execute(ctx, nil)
}

// GetProfile fetches the profile row of userID.
func (p *Profiles) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := p.client.From(p.table).
		Select("*").
		Eq("id", userID).
		Single().
		Execute(ctx, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Recipes is the recipe table reached through the database API.
type Recipes struct {
	client *Client
	table  string
}

// NewRecipes binds the recipe table.
func NewRecipes(client *Client, table string) *Recipes {
	return &Recipes{client: client, table: table}
}

// List returns every recipe, newest first.
func (r *Recipes) List(ctx context.Context) ([]model.Recipe, error) {
	recipes := []model.Recipe{}
	err := r.client.From(r.table).
		Select("*").
		Order("created_at", false).
		Execute(ctx, &recipes)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// ListByIngredient returns recipes whose ingredients include the
// lower-cased ingredient as a whole element, newest first.
func (r *Recipes) ListByIngredient(ctx context.Context, ingredient string) ([]model.Recipe, error) {
	recipes := []model.Recipe{}
	err := r.client.From(r.table).
		Select("*").
		Contains("ingredients", []string{strings.ToLower(ingredient)}).
		Order("created_at", false).
		Execute(ctx, &recipes)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// Get returns one recipe by id.
func (r *Recipes) Get(ctx context.Context, id string) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.client.From(r.table).
		Select("*").
		Eq("id", id).
		Single().
		Execute(ctx, &recipe)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Insert stores a new recipe and returns the stored row.
func (r *Recipes) Insert(ctx context.Context, input model.RecipeInput) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.client.From(r.table).
		Insert(input).
		Single().
		Execute(ctx, &recipe)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Update applies patch to the recipe with id and returns the updated row.
func (r *Recipes) Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.client.From(r.table).
		Update(patch).
		Eq("id", id).
		Single().
		Execute(ctx, &recipe)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Delete removes the recipe with id.
func (r *Recipes) Delete(ctx context.Context, id string) error {
	return r.client.From(r.table).
		Delete().
		Eq("id", id).
		Execute(ctx, nil)
}
