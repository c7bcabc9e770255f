package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/recetas/recetas/internal/device"
	"github.com/recetas/recetas/internal/metrics"
	"github.com/recetas/recetas/internal/model"
)

// Recipe errors.
var (
	ErrMediaNotConfigured = errors.New("image uploads are not configured")
	ErrNoPicker           = errors.New("no image picker available")
)

// Alert messages shown when a capability is refused.
const (
	LibraryPermissionMessage = "We need permission to access your photos"
	CameraPermissionMessage  = "We need permission to access the camera"
)

// RecipeUseCase lists, searches and edits recipes and attaches images to them.
type RecipeUseCase struct {
	store   RecipeStore
	media   MediaUploader
	picker  device.Picker
	alerter device.Alerter
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// RecipeOption configures a RecipeUseCase.
type RecipeOption func(*RecipeUseCase)

// WithMedia sets the image host. Without one, image-bearing writes fail.
func WithMedia(media MediaUploader) RecipeOption {
	return func(u *RecipeUseCase) { u.media = media }
}

// WithPicker sets the device used by PickFromLibrary and TakePhoto.
func WithPicker(picker device.Picker, alerter device.Alerter) RecipeOption {
	return func(u *RecipeUseCase) {
		u.picker = picker
		u.alerter = alerter
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) RecipeOption {
	return func(u *RecipeUseCase) { u.metrics = recorder }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RecipeOption {
	return func(u *RecipeUseCase) { u.logger = logger }
}

// NewRecipeUseCase creates a new RecipeUseCase.
func NewRecipeUseCase(store RecipeStore, opts ...RecipeOption) *RecipeUseCase {
	u := &RecipeUseCase{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.metrics == nil {
		u.metrics = metrics.NewNoop()
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	u.logger = u.logger.With("component", "recipes")
	return u
}

// ListRecipes returns every recipe, newest first. On failure it logs and
// returns an empty list.
func (u *RecipeUseCase) ListRecipes(ctx context.Context) []model.Recipe {
	recipes, err := u.store.List(ctx)
	if err != nil {
		u.readFailed(metrics.ReadList, err)
		return []model.Recipe{}
	}
	return nonNil(recipes)
}

// SearchByIngredient returns recipes that list the ingredient, compared
// case-insensitively as a whole element, newest first. On failure it logs
// and returns an empty list.
func (u *RecipeUseCase) SearchByIngredient(ctx context.Context, ingredient string) []model.Recipe {
	recipes, err := u.store.ListByIngredient(ctx, strings.ToLower(ingredient))
	if err != nil {
		u.readFailed(metrics.ReadSearch, err, slog.String("ingredient", ingredient))
		return []model.Recipe{}
	}
	return nonNil(recipes)
}

// GetRecipe returns one recipe, or nil when it is missing or the read fails.
func (u *RecipeUseCase) GetRecipe(ctx context.Context, id string) *model.Recipe {
	recipe, err := u.store.Get(ctx, id)
	if err != nil {
		u.readFailed(metrics.ReadGet, err, slog.String("recipe_id", id))
		return nil
	}
	return recipe
}

// CreateRecipe uploads the image, if any, and stores the recipe owned by
// chefID. A failed upload fails the whole operation before anything is
// stored. Inputs are not validated here.
func (u *RecipeUseCase) CreateRecipe(ctx context.Context, title, description string, ingredients []string, chefID, imageURI string) Result[*model.Recipe] {
	input := model.RecipeInput{
		Title:       title,
		Description: description,
		Ingredients: ingredients,
		ChefID:      chefID,
	}

	if imageURI != "" {
		url, err := u.uploadImage(ctx, imageURI)
		if err != nil {
			u.metrics.IncRecipeWriteFailed("create")
			return Fail[*model.Recipe](err)
		}
		input.ImageURL = &url
	}

	recipe, err := u.store.Insert(ctx, input)
	if err != nil {
		u.writeFailed("create", err, slog.String("chef_id", chefID))
		return Fail[*model.Recipe](err)
	}

	u.metrics.IncRecipeCreated()
	u.logger.Info("recipe created", slog.String("recipe_id", recipe.ID), slog.String("chef_id", chefID))
	return OK(recipe)
}

// UpdateRecipe overwrites title, description and ingredients. The stored
// image is replaced only when imageURI is not empty.
func (u *RecipeUseCase) UpdateRecipe(ctx context.Context, id, title, description string, ingredients []string, imageURI string) Result[*model.Recipe] {
	patch := model.RecipePatch{
		Title:       title,
		Description: description,
		Ingredients: ingredients,
	}

	if imageURI != "" {
		url, err := u.uploadImage(ctx, imageURI)
		if err != nil {
			u.metrics.IncRecipeWriteFailed("update")
			return Fail[*model.Recipe](err)
		}
		patch.ImageURL = &url
	}

	recipe, err := u.store.Update(ctx, id, patch)
	if err != nil {
		u.writeFailed("update", err, slog.String("recipe_id", id))
		return Fail[*model.Recipe](err)
	}

	u.metrics.IncRecipeUpdated()
	return OK(recipe)
}

// DeleteRecipe removes a recipe. Ownership is enforced by the backend.
func (u *RecipeUseCase) DeleteRecipe(ctx context.Context, id string) Result[Empty] {
	if err := u.store.Delete(ctx, id); err != nil {
		u.writeFailed("delete", err, slog.String("recipe_id", id))
		return Fail[Empty](err)
	}

	u.metrics.IncRecipeDeleted()
	u.logger.Info("recipe deleted", slog.String("recipe_id", id))
	return OK(Empty{})
}

// uploadImage hosts the local image and returns its secure URL.
func (u *RecipeUseCase) uploadImage(ctx context.Context, localURI string) (string, error) {
	if u.media == nil {
		return "", ErrMediaNotConfigured
	}

	start := u.now()
	url, err := u.media.Upload(ctx, localURI)
	u.metrics.ObserveImageUploadDuration(u.now().Sub(start))
	if err != nil {
		u.metrics.IncImageUpload("failed")
		u.logger.Error("image upload failed", slog.String("error", err.Error()))
		return "", err
	}
	u.metrics.IncImageUpload("success")
	return url, nil
}

// PickFromLibrary lets the user choose a photo and returns its local URI,
// or "" when permission is refused, the user cancels or the picker fails.
func (u *RecipeUseCase) PickFromLibrary(ctx context.Context) string {
	return u.pick(ctx, false)
}

// TakePhoto lets the user capture a photo and returns its local URI, or ""
// when permission is refused, the user cancels or the camera fails.
func (u *RecipeUseCase) TakePhoto(ctx context.Context) string {
	return u.pick(ctx, true)
}

func (u *RecipeUseCase) pick(ctx context.Context, camera bool) string {
	source, deniedMessage := "library", LibraryPermissionMessage
	if camera {
		source, deniedMessage = "camera", CameraPermissionMessage
	}
	logger := u.logger.With(slog.String("source", source))

	if u.picker == nil {
		logger.Error("image selection failed", slog.String("error", ErrNoPicker.Error()))
		return ""
	}

	var (
		perm device.Permission
		err  error
	)
	if camera {
		perm, err = u.picker.RequestCameraPermission(ctx)
	} else {
		perm, err = u.picker.RequestLibraryPermission(ctx)
	}
	if err != nil {
		logger.Error("permission request failed", slog.String("error", err.Error()))
	}
	if err != nil || !perm.Granted() {
		u.alert(ctx, deniedMessage)
		return ""
	}

	var res device.PickResult
	if camera {
		res, err = u.picker.LaunchCamera(ctx, device.DefaultPickOptions)
	} else {
		res, err = u.picker.LaunchLibrary(ctx, device.DefaultPickOptions)
	}
	if err != nil {
		logger.Error("image selection failed", slog.String("error", err.Error()))
		return ""
	}
	if res.Canceled {
		return ""
	}
	return res.URI
}

func (u *RecipeUseCase) alert(ctx context.Context, message string) {
	if u.alerter != nil {
		u.alerter.Alert(ctx, message)
	}
}

func (u *RecipeUseCase) readFailed(op string, err error, attrs ...any) {
	u.metrics.IncReadFailure(op)
	args := append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)
	u.logger.Error("recipe read failed", args...)
}

func (u *RecipeUseCase) writeFailed(op string, err error, attrs ...any) {
	u.metrics.IncRecipeWriteFailed(op)
	args := append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)
	u.logger.Error("recipe write failed", args...)
}

func nonNil(recipes []model.Recipe) []model.Recipe {
	if recipes == nil {
		return []model.Recipe{}
	}
	return recipes
}
