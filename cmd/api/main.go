// Package main is the entrypoint for the Recetas API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recetas/recetas/internal/cache"
	"github.com/recetas/recetas/internal/cloudinary"
	"github.com/recetas/recetas/internal/config"
	"github.com/recetas/recetas/internal/handler"
	"github.com/recetas/recetas/internal/metrics"
	"github.com/recetas/recetas/internal/middleware"
	"github.com/recetas/recetas/internal/model"
	"github.com/recetas/recetas/internal/repository"
	"github.com/recetas/recetas/internal/server"
	"github.com/recetas/recetas/internal/supabase"
	"github.com/recetas/recetas/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metricsRecorder := metrics.NewPrometheus()

	// Initialize cache (optional)
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return err
		}
		cacheClient = c
		logger.Info("connected to Redis")
	}

	// Initialize identity/data service client. The API keeps no session of
	// its own: every call runs with the caller's bearer token.
	clientOpts := []supabase.Option{supabase.WithLogger(logger)}
	if cacheClient != nil {
		clientOpts = append(clientOpts, supabase.WithNotifier(cache.NewAuthNotifier(cacheClient, logger)))
	}
	client, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, clientOpts...)
	if err != nil {
		return err
	}

	var identity usecase.IdentityGateway = client
	var profiles usecase.ProfileStore = supabase.NewProfiles(client, cfg.ProfilesTable)
	var recipes usecase.RecipeStore = supabase.NewRecipes(client, cfg.RecipesTable)

	// Initialize database (optional direct mode)
	var repo *repository.Repository
	if cfg.DatabaseURL != "" {
		repo, err = repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return err
		}
		logger.Info("connected to database, serving recipes directly")
		identity = &provisioningIdentity{IdentityGateway: client, profiles: repo, logger: logger}
		profiles = repo
		recipes = repo
	}

	recipeOpts := []usecase.RecipeOption{
		usecase.WithRecorder(metricsRecorder),
		usecase.WithLogger(logger),
	}
	if cfg.MediaConfigured() {
		uploader, err := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset,
			cloudinary.WithAPIBase(cfg.CloudinaryAPIBase),
			cloudinary.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		recipeOpts = append(recipeOpts, usecase.WithMedia(uploader))
	} else {
		logger.Warn("image uploads disabled: CLOUDINARY_CLOUD_NAME or CLOUDINARY_UPLOAD_PRESET not set")
	}

	// Initialize use-cases
	authUC := usecase.NewAuthUseCase(identity, profiles, metricsRecorder, logger)
	recipeUC := usecase.NewRecipeUseCase(recipes, recipeOpts...)

	// Initialize handlers. Interfaces only receive non-nil values.
	var dbCheck, cacheCheck handler.HealthChecker
	var invalidator handler.ProfileInvalidator
	var profileCache middleware.ProfileCache
	var limiter middleware.Limiter
	if repo != nil {
		dbCheck = repo
	}
	if cacheClient != nil {
		cacheCheck = cacheClient
		invalidator = cacheClient
		profileCache = cacheClient
		limiter = cacheClient
	}

	h := handler.New()
	healthHandler := handler.NewHealthHandler(client, dbCheck, cacheCheck)
	authHandler := handler.NewAuthHandler(authUC, invalidator, logger)
	recipeHandler := handler.NewRecipeHandler(recipeUC, logger)

	// Setup router
	r := setupRouter(routerDeps{
		h:            h,
		health:       healthHandler,
		auth:         authHandler,
		recipes:      recipeHandler,
		users:        authUC,
		profileCache: profileCache,
		limiter:      limiter,
		metrics:      metricsRecorder,
		cfg:          cfg,
		logger:       logger,
	})

	// Create server
	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if repo != nil {
		srv.OnShutdown("postgres", func(context.Context) error {
			repo.Close()
			return nil
		})
	}
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})

		// Sign-outs seen by any instance drop the cached profiles.
		unsubscribe := client.OnAuthChange(func(change model.AuthChange) {
			if change.Event != model.AuthSignedOut || change.UserID == "" {
				return
			}
			if err := cacheClient.InvalidateUser(context.Background(), change.UserID); err != nil {
				logger.Warn("failed to drop cached profile",
					slog.String("user_id", change.UserID),
					slog.String("error", err.Error()),
				)
			}
		})
		srv.OnShutdown("auth_notifier", func(context.Context) error {
			unsubscribe()
			return nil
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"direct_db", repo != nil,
		"redis", cacheClient != nil,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	h            *handler.Handler
	health       *handler.HealthHandler
	auth         *handler.AuthHandler
	recipes      *handler.RecipeHandler
	users        middleware.UserResolver
	profileCache middleware.ProfileCache
	limiter      middleware.Limiter
	metrics      *metrics.PrometheusRecorder
	cfg          *config.Config
	logger       *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg := d.cfg
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.BodyLimit(cfg.MaxRequestBodySize, cfg.MaxUploadSize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method("GET", "/metrics", d.metrics.Handler())

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger: d.logger,
		Users:  d.users,
		Cache:  d.profileCache,
	}
	requireUser := middleware.RequireUser(authCfg)

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:          d.logger,
		Limiter:         d.limiter,
		Enabled:         cfg.RateLimitEnabled && d.limiter != nil,
		IPRPS:           cfg.RateLimitRPS,
		IPBurst:         cfg.RateLimitBurst,
		WritesPerMinute: cfg.WriteRateLimitPerMinute,
		WriteBurst:      cfg.WriteRateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerToken)
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", d.auth.SignUp)
			r.Post("/signin", d.auth.SignIn)
			r.Post("/refresh", d.auth.Refresh)
			r.Get("/me", d.auth.Me)
			r.With(requireUser).Post("/signout", d.auth.SignOut)
			r.With(requireUser).Get("/events", d.auth.Events)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", d.recipes.List)
			r.Get("/{id}", d.recipes.Get)

			// Writes require a chef
			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Use(middleware.RequireChef)
				r.Use(middleware.RateLimitWrites(rateLimitCfg))
				r.Post("/", d.recipes.Create)
				r.Put("/{id}", d.recipes.Update)
				r.Delete("/{id}", d.recipes.Delete)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.h.NotFound)
	r.MethodNotAllowed(d.h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
