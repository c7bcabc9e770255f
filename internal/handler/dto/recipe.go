// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/recetas/recetas/internal/model"
)

// SignUpRequest represents the request body for registering.
type SignUpRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// SignInRequest represents the request body for signing in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for refreshing a session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RecipeRequest represents the JSON body for creating or updating a recipe.
// Multipart requests carry the same fields as form values plus an "image" file.
type RecipeRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
}

// AuthEvent is one server-sent auth state change. User is nil when the
// change left no session.
type AuthEvent struct {
	User *model.User `json:"user"`
}
