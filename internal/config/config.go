// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Identity/database service. Both are required: the backing client
	// cannot be constructed without them.
	SupabaseURL     string `env:"SUPABASE_URL,required"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY,required"`

	// Remote table names
	ProfilesTable string `env:"SUPABASE_PROFILES_TABLE" envDefault:"users"`
	RecipesTable  string `env:"SUPABASE_RECIPES_TABLE" envDefault:"recipes"`

	// Media host
	CloudinaryCloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryUploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET"`
	CloudinaryAPIBase      string `env:"CLOUDINARY_API_BASE" envDefault:"https://api.cloudinary.com"`

	// Direct database mode (PostgreSQL). Optional.
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Optional; enables rate limiting and cross-instance
	// auth notifications.
	RedisURL string `env:"REDIS_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (requires Redis)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Per-user limit on recipe writes. Zero disables it.
	WriteRateLimitPerMinute int `env:"WRITE_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	WriteRateLimitBurst     int `env:"WRITE_RATE_LIMIT_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes for JSON bodies (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Request body size limit in bytes for multipart image uploads (default 10MB)
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`

	// CLI settings
	SessionFile string `env:"RECETAS_SESSION_FILE"`
	CameraCmd   string `env:"RECETAS_CAMERA_CMD"`
}

// legacyNames maps a variable to the name the mobile app used for it.
var legacyNames = map[string]string{
	"SUPABASE_URL":             "EXPO_PUBLIC_SUPABASE_URL",
	"SUPABASE_ANON_KEY":        "EXPO_PUBLIC_SUPABASE_ANON_KEY",
	"CLOUDINARY_CLOUD_NAME":    "EXPO_PUBLIC_CLOUDINARY_CLOUD_NAME",
	"CLOUDINARY_UPLOAD_PRESET": "EXPO_PUBLIC_CLOUDINARY_UPLOAD_PRESET",
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MediaConfigured reports whether image uploads can be performed.
func (c *Config) MediaConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryUploadPreset != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	return LoadFrom(os.Environ())
}

// LoadFrom parses a KEY=VALUE environment list.
// Names used by the mobile app (EXPO_PUBLIC_*) fill in unset variables.
func LoadFrom(environ []string) (*Config, error) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			vars[key] = value
		}
	}

	for name, legacy := range legacyNames {
		if vars[name] != "" {
			continue
		}
		if value := vars[legacy]; value != "" {
			vars[name] = value
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
