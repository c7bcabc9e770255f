package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	// MaxTitleLength is the maximum length of a recipe title, in runes.
	MaxTitleLength = 200

	// MaxDescriptionLength is the maximum length of a recipe description, in runes.
	MaxDescriptionLength = 10000

	// MaxIngredients is the maximum number of ingredients on a recipe.
	MaxIngredients = 100

	// MaxIngredientLength is the maximum length of one ingredient, in runes.
	MaxIngredientLength = 120
)

// Validation errors.
var (
	ErrRecipeIncomplete     = errors.New("complete all fields and add at least one ingredient")
	ErrTitleTooLong         = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong   = errors.New("description exceeds maximum length")
	ErrTooManyIngredients   = errors.New("too many ingredients")
	ErrIngredientTooLong    = errors.New("ingredient exceeds maximum length")
	ErrUnsupportedImageType = errors.New("image must be a JPEG, PNG or HEIC file")
)

// allowedImageTypes are the content types accepted for recipe images.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/heic": true,
	"image/heif": true,
}

// NormalizeIngredients trims every ingredient and drops blank ones.
func NormalizeIngredients(ingredients []string) []string {
	out := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if trimmed := strings.TrimSpace(ing); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ValidateRecipe checks the fields a recipe form requires. Ingredients are
// expected to be normalized already.
func ValidateRecipe(title, description string, ingredients []string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" || len(ingredients) == 0 {
		return ErrRecipeIncomplete
	}

	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if len(ingredients) > MaxIngredients {
		return ErrTooManyIngredients
	}
	for _, ing := range ingredients {
		if utf8.RuneCountInString(ing) > MaxIngredientLength {
			return ErrIngredientTooLong
		}
	}

	return nil
}

// ValidateImageContentType checks the declared type of an uploaded image.
// An empty type is accepted; the media host has the final word.
func ValidateImageContentType(contentType string) error {
	if contentType == "" || contentType == "application/octet-stream" {
		return nil
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !allowedImageTypes[strings.ToLower(strings.TrimSpace(mediaType))] {
		return ErrUnsupportedImageType
	}
	return nil
}
