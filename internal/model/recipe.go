package model

import "time"

// Recipe is a row of the recipes table.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Ingredients []string  `json:"ingredients"`
	ChefID      string    `json:"chef_id"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasImage reports whether a hosted image is attached.
func (r *Recipe) HasImage() bool {
	return r.ImageURL != nil && *r.ImageURL != ""
}

// RecipeInput is the writable part of a recipe.
type RecipeInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	ChefID      string   `json:"chef_id,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
}

// RecipePatch carries the columns an update overwrites.
// ImageURL is nil when the stored image must be left untouched.
type RecipePatch struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	ImageURL    *string  `json:"image_url,omitempty"`
}
