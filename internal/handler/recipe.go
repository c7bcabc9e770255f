package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/recetas/recetas/internal/auth"
	"github.com/recetas/recetas/internal/handler/dto"
	"github.com/recetas/recetas/internal/middleware"
	"github.com/recetas/recetas/internal/model"
	"github.com/recetas/recetas/internal/usecase"
)

// multipartMemory is the part of a multipart form kept in memory; larger
// files spill to disk.
const multipartMemory = 4 << 20

// RecipeHandler handles HTTP requests for recipes.
type RecipeHandler struct {
	uc     *usecase.RecipeUseCase
	logger *slog.Logger
	tmpDir string
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(uc *usecase.RecipeUseCase, logger *slog.Logger) *RecipeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipeHandler{
		uc:     uc,
		logger: logger.With("component", "recipe_handler"),
	}
}

// recipeForm is a decoded create or update request.
type recipeForm struct {
	dto.RecipeRequest
	imagePath string
}

// List handles GET /api/v1/recipes. With ?ingredient= it searches by a
// single ingredient.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	var recipes []model.Recipe
	if ingredient := strings.TrimSpace(r.URL.Query().Get("ingredient")); ingredient != "" {
		recipes = h.uc.SearchByIngredient(r.Context(), ingredient)
	} else {
		recipes = h.uc.ListRecipes(r.Context())
	}
	writeJSON(w, http.StatusOK, usecase.OK(recipes))
}

// Get handles GET /api/v1/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipe := h.uc.GetRecipe(r.Context(), chi.URLParam(r, "id"))
	if recipe == nil {
		writeFailure(w, http.StatusNotFound, "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, usecase.OK(recipe))
}

// Create handles POST /api/v1/recipes. Requires RequireChef.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustUserFromContext(ctx)

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer h.removeSpool(form.imagePath)

	result := h.uc.CreateRecipe(ctx, form.Title, form.Description, form.Ingredients, user.ID, form.imagePath)
	writeResult(w, result, http.StatusCreated, http.StatusBadRequest)
}

// Update handles PUT /api/v1/recipes/{id}. Requires RequireChef.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if !h.authorizeOwner(w, r, id) {
		return
	}

	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer h.removeSpool(form.imagePath)

	result := h.uc.UpdateRecipe(ctx, id, form.Title, form.Description, form.Ingredients, form.imagePath)
	writeResult(w, result, http.StatusOK, http.StatusBadRequest)
}

// Delete handles DELETE /api/v1/recipes/{id}. Requires RequireChef.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorizeOwner(w, r, id) {
		return
	}

	result := h.uc.DeleteRecipe(r.Context(), id)
	writeResult(w, result, http.StatusOK, http.StatusBadRequest)
}

// authorizeOwner rejects requests for recipes the caller does not own.
// The backend access rules still decide; this only gives a clear answer.
func (h *RecipeHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	user := auth.MustUserFromContext(r.Context())

	recipe := h.uc.GetRecipe(r.Context(), id)
	if recipe == nil {
		writeFailure(w, http.StatusNotFound, "recipe not found")
		return false
	}
	if !user.Owns(recipe) {
		h.logger.Warn("recipe write refused",
			slog.String("recipe_id", id),
			slog.String("user_id", user.ID),
		)
		writeFailure(w, http.StatusForbidden, "only the owning chef can change this recipe")
		return false
	}
	return true
}

// readForm decodes a JSON or multipart recipe body and validates it. It
// writes the error response itself and reports false on failure.
func (h *RecipeHandler) readForm(w http.ResponseWriter, r *http.Request) (recipeForm, bool) {
	var form recipeForm

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := h.readMultipart(r, &form); err != nil {
			h.removeSpool(form.imagePath)
			h.writeFormError(w, err)
			return form, false
		}
	} else if err := decodeJSON(r, &form.RecipeRequest); err != nil {
		handleDecodeError(w, err)
		return form, false
	}

	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	form.Ingredients = middleware.NormalizeIngredients(form.Ingredients)

	if err := middleware.ValidateRecipe(form.Title, form.Description, form.Ingredients); err != nil {
		h.removeSpool(form.imagePath)
		writeFailure(w, http.StatusUnprocessableEntity, err.Error())
		return form, false
	}
	return form, true
}

// readMultipart parses title, description, repeated ingredients fields and
// an optional image file. The image is spooled to a temporary file whose
// path ends up in form.imagePath.
func (h *RecipeHandler) readMultipart(r *http.Request, form *recipeForm) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form.Title = r.FormValue("title")
	form.Description = r.FormValue("description")
	form.Ingredients = r.MultipartForm.Value["ingredients"]

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return nil
	}
	header := files[0]
	if err := middleware.ValidateImageContentType(header.Header.Get("Content-Type")); err != nil {
		return err
	}

	path, err := h.spool(header)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	form.imagePath = path
	return nil
}

// spool copies an uploaded file to a temporary file and returns its path.
func (h *RecipeHandler) spool(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.tmpDir, "recipe-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (h *RecipeHandler) removeSpool(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("failed to remove spooled image", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (h *RecipeHandler) writeFormError(w http.ResponseWriter, err error) {
	switch {
	case isBodyTooLarge(err):
		writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, middleware.ErrUnsupportedImageType):
		writeFailure(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, multipart.ErrMessageTooLarge):
		writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		h.logger.Warn("invalid multipart body", slog.String("error", err.Error()))
		writeFailure(w, http.StatusBadRequest, "invalid multipart body")
	}
}
