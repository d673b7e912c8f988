// Package config loads application configuration from environment
// variables with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opencanvass/canvassd/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// RateLimit configuration
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Store configuration
	Store StoreConfig

	// Development enables verbose error responses
	Development bool
}

// StoreConfig controls document store persistence
type StoreConfig struct {
	// SnapshotDir is where collections are saved on shutdown and loaded
	// from on boot. Empty disables persistence.
	SnapshotDir string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes limits the size of request bodies
	MaxBodyBytes int64

	// CORSOrigins lists allowed cross-origin hosts ("*" allows all)
	CORSOrigins []string
}

// AuthConfig holds token signing and access control configuration
type AuthConfig struct {
	// TokenSecret signs access tokens. Required unless Disabled is set.
	TokenSecret string

	// WebTokenTTL is the lifetime of tokens issued to web clients
	WebTokenTTL time.Duration

	// MobileTokenTTL is the lifetime of tokens issued to mobile clients
	MobileTokenTTL time.Duration

	// Disabled turns off access control entirely. Development only.
	Disabled bool

	// AdminPassword seeds the initial admin account when the user
	// collection is empty
	AdminPassword string
}

// RateLimitConfig holds request throttling configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int

	// RedisURL enables the Redis-backed limiter shared across instances.
	// Empty means the in-process limiter is used.
	RedisURL      string
	RedisPassword string
	RedisDB       int
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
		Store:         StoreConfig{SnapshotDir: getEnv("CANVASSD_SNAPSHOT_DIR", "")},
		Development:   getEnvBool("CANVASSD_DEVELOPMENT", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CANVASSD_HOST", "0.0.0.0"),
		Port:            getEnv("CANVASSD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CANVASSD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CANVASSD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CANVASSD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CANVASSD_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("CANVASSD_MAX_BODY_BYTES", 1<<20),
		CORSOrigins:     splitList(getEnv("CANVASSD_CORS_ORIGINS", "*")),
	}
}

// loadAuthConfig loads access control configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:    getEnv("CANVASSD_TOKEN_SECRET", ""),
		WebTokenTTL:    getEnvDuration("CANVASSD_WEB_TOKEN_TTL", time.Hour),
		MobileTokenTTL: getEnvDuration("CANVASSD_MOBILE_TOKEN_TTL", 30*24*time.Hour),
		Disabled:       getEnvBool("CANVASSD_AUTH_DISABLED", false),
		AdminPassword:  getEnv("CANVASSD_ADMIN_PASSWORD", ""),
	}
}

// loadRateLimitConfig loads throttling configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("CANVASSD_RATE_LIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("CANVASSD_RATE_LIMIT_REQUESTS", 100),
		WindowDuration:    getEnvDuration("CANVASSD_RATE_LIMIT_WINDOW", time.Minute),
		BurstSize:         getEnvInt("CANVASSD_RATE_LIMIT_BURST", 10),
		RedisURL:          getEnv("CANVASSD_REDIS_URL", ""),
		RedisPassword:     getEnv("CANVASSD_REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("CANVASSD_REDIS_DB", 0),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("CANVASSD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CANVASSD_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	if !c.Auth.Disabled && c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required when access control is enabled (set CANVASSD_TOKEN_SECRET)")
	}
	if c.Auth.WebTokenTTL <= 0 || c.Auth.MobileTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
		if c.RateLimit.WindowDuration <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// splitList splits a comma separated environment value
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
