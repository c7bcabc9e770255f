package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/recetas/recetas/internal/model"
)

// Common errors for recipe repository operations.
var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrUnknownChef    = errors.New("chef profile does not exist")
)

const recipeColumns = `id::text, title, description, ingredients, chef_id, image_url, created_at`

// List returns every recipe, newest first.
func (r *Repository) List(ctx context.Context) ([]model.Recipe, error) {
	query := `
		SELECT ` + recipeColumns + `
		FROM recipes
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return collectRecipes(rows)
}

// ListByIngredient returns recipes whose ingredient list contains ingredient
// as an exact element, newest first.
func (r *Repository) ListByIngredient(ctx context.Context, ingredient string) ([]model.Recipe, error) {
	query := `
		SELECT ` + recipeColumns + `
		FROM recipes
		WHERE ingredients @> $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, pq.Array([]string{ingredient}))
	if err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}
	return collectRecipes(rows)
}

// Get retrieves a recipe by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*model.Recipe, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecipeNotFound
	}

	query := `
		SELECT ` + recipeColumns + `
		FROM recipes
		WHERE id = $1
	`

	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return recipe, nil
}

// Insert creates a recipe and returns the stored row.
func (r *Repository) Insert(ctx context.Context, input model.RecipeInput) (*model.Recipe, error) {
	query := `
		INSERT INTO recipes (id, title, description, ingredients, chef_id, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + recipeColumns

	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query,
		uuid.NewString(),
		input.Title,
		input.Description,
		pq.Array(nonNil(input.Ingredients)),
		input.ChefID,
		input.ImageURL,
	))
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return nil, ErrUnknownChef
		}
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}
	return recipe, nil
}

// Update overwrites title, description and ingredients. The image column
// changes only when patch carries a new URL.
func (r *Repository) Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecipeNotFound
	}

	query := `
		UPDATE recipes
		SET title = $2,
			description = $3,
			ingredients = $4,
			image_url = COALESCE($5, image_url)
		WHERE id = $1
		RETURNING ` + recipeColumns

	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query,
		id,
		patch.Title,
		patch.Description,
		pq.Array(nonNil(patch.Ingredients)),
		patch.ImageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}
	return recipe, nil
}

// Delete removes a recipe. Deleting a missing recipe is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return nil
}

// scanRecipe scans a single row into a Recipe model.
func scanRecipe(row pgx.Row) (*model.Recipe, error) {
	var recipe model.Recipe
	var ingredients []string

	err := row.Scan(
		&recipe.ID,
		&recipe.Title,
		&recipe.Description,
		pq.Array(&ingredients),
		&recipe.ChefID,
		&recipe.ImageURL,
		&recipe.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Ingredients = nonNil(ingredients)
	return &recipe, nil
}

func collectRecipes(rows pgx.Rows) ([]model.Recipe, error) {
	defer rows.Close()

	recipes := make([]model.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, *recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}
	return recipes, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
