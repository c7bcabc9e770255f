package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/recetas/recetas/internal/cache"
	"github.com/recetas/recetas/internal/cloudinary"
	"github.com/recetas/recetas/internal/config"
	"github.com/recetas/recetas/internal/device"
	"github.com/recetas/recetas/internal/supabase"
	"github.com/recetas/recetas/internal/usecase"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *supabase.Client
	store    *supabase.FileStore
	terminal *device.Terminal
	auth     *usecase.AuthUseCase
	recipes  *usecase.RecipeUseCase
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	closers  []func() error
}

// bootApp loads config and builds the client, use-cases and terminal device.
func bootApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		if sessionPath, err = supabase.DefaultSessionPath(); err != nil {
			return nil, err
		}
	}
	store := supabase.NewFileStore(sessionPath)

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		in:     cmd.InOrStdin(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	clientOpts := []supabase.Option{
		supabase.WithSessionStore(store),
		supabase.WithLogger(logger),
	}
	// With Redis the CLI shares auth changes with the API instances.
	if cfg.RedisURL != "" {
		c, err := cache.New(cmd.Context(), cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		clientOpts = append(clientOpts, supabase.WithNotifier(cache.NewAuthNotifier(c, logger)))
	}

	a.client, err = supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, clientOpts...)
	if err != nil {
		a.close()
		return nil, err
	}

	a.terminal = device.NewTerminal(a.in, a.errOut, device.WithCameraCommand(cfg.CameraCmd))

	recipeOpts := []usecase.RecipeOption{
		usecase.WithPicker(a.terminal, a.terminal),
		usecase.WithLogger(logger),
	}
	if cfg.MediaConfigured() {
		uploader, err := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset,
			cloudinary.WithAPIBase(cfg.CloudinaryAPIBase),
			cloudinary.WithLogger(logger),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		recipeOpts = append(recipeOpts, usecase.WithMedia(uploader))
	}

	a.auth = usecase.NewAuthUseCase(a.client, supabase.NewProfiles(a.client, cfg.ProfilesTable), nil, logger)
	a.recipes = usecase.NewRecipeUseCase(supabase.NewRecipes(a.client, cfg.RecipesTable), recipeOpts...)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// withApp runs fn with a booted app and releases it afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		a.refreshIfExpiring(cmd.Context())
		return fn(cmd.Context(), a, args)
	}
}

// refreshLeeway is how close to expiry a stored session gets refreshed.
const refreshLeeway = time.Minute

// refreshIfExpiring renews the stored session when its access token is about
// to expire. A failed refresh leaves the session as it is; commands then run
// signed out.
func (a *app) refreshIfExpiring(ctx context.Context) {
	session, err := a.store.Load(ctx)
	if err != nil || session == nil || session.RefreshToken == "" {
		return
	}
	if !session.Expired(time.Now().Add(refreshLeeway)) {
		return
	}
	if result := a.auth.RefreshSession(ctx, ""); !result.Ok() {
		a.logger.Warn("session refresh failed", slog.String("error", result.Err()))
	}
}

// printJSON writes v as indented JSON.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// check turns a failed result into a command error.
func check[T any](result usecase.Result[T]) (T, error) {
	if !result.Ok() {
		var zero T
		return zero, result.AsError()
	}
	return result.Value(), nil
}
