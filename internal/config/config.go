package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Database types
const (
	DatabaseTypeSQLite     = "sqlite"
	DatabaseTypePostgreSQL = "postgres"
)

// DefaultMaxSoftwareSize is the upload ceiling for software artifacts (300 MiB)
const DefaultMaxSoftwareSize int64 = 300 * 1024 * 1024

// Config holds all application configuration
type Config struct {
	Port string

	// Storage roots. Software and product images live under UploadsBasePath;
	// previews have their own root because they default to public/uploads.
	UploadsBasePath  string
	PreviewsBasePath string
	MaxSoftwareSize  int64

	DatabaseType string
	DBPath       string
	PostgreSQL   *PostgreSQLConfig

	CORSAllowedOrigin string

	UploadTimeout   time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SessionExpiryHours int
	HTTPSEnabled       bool // Marks session cookies Secure
	RateLimitLogin     int  // Login attempts per IP per hour

	// TrustProxyHeaders is "auto", "true" or "false". In auto mode
	// X-Forwarded-For is only believed from TrustedProxyIPs.
	TrustProxyHeaders string
	TrustedProxyIPs   string // comma-separated IPs and CIDR ranges

	LogLevel  slog.Level
	LogFormat string // "json" or "text"
}

// PostgreSQLConfig holds PostgreSQL connection settings
type PostgreSQLConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	Options        string // Extra query parameters appended to the connection string
	MaxConnections int
	AutoMigrate    bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	uploadsBase := getEnv("UPLOADS_BASE_PATH", "")
	previewsBase := uploadsBase
	if uploadsBase == "" {
		uploadsBase = filepath.Join(cwd, "uploads")
		previewsBase = filepath.Join(cwd, "public", "uploads")
	}

	logLevel, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		UploadsBasePath:    uploadsBase,
		PreviewsBasePath:   previewsBase,
		MaxSoftwareSize:    getEnvInt64("MAX_SOFTWARE_SIZE", DefaultMaxSoftwareSize),
		DatabaseType:       strings.ToLower(getEnv("DB_TYPE", DatabaseTypeSQLite)),
		DBPath:             getEnv("DB_PATH", "./softvault.db"),
		CORSAllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "https://modskinslol.com"),
		UploadTimeout:      getEnvDuration("UPLOAD_TIMEOUT", 5*time.Minute),
		ReadTimeout:        getEnvDuration("READ_TIMEOUT", 15*time.Minute),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", 15*time.Minute),
		IdleTimeout:        getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SessionExpiryHours: getEnvInt("SESSION_EXPIRY_HOURS", 24),
		HTTPSEnabled:       getEnvBool("HTTPS_ENABLED", false),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 10),
		TrustProxyHeaders:  strings.ToLower(getEnv("TRUST_PROXY_HEADERS", "auto")),
		TrustedProxyIPs:    getEnv("TRUSTED_PROXY_IPS", "127.0.0.1,::1"),
		LogLevel:           logLevel,
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if cfg.DatabaseType == DatabaseTypePostgreSQL {
		cfg.PostgreSQL = &PostgreSQLConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnvInt("POSTGRES_PORT", 5432),
			User:           getEnv("POSTGRES_USER", "softvault"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			Database:       getEnv("POSTGRES_DB", "softvault"),
			SSLMode:        getEnv("POSTGRES_SSLMODE", "prefer"),
			Options:        getEnv("POSTGRES_OPTIONS", ""),
			MaxConnections: getEnvInt("POSTGRES_MAX_CONNS", 25),
			AutoMigrate:    getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		}
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}

	if c.UploadsBasePath == "" {
		return fmt.Errorf("UPLOADS_BASE_PATH cannot be empty")
	}

	if c.MaxSoftwareSize <= 0 {
		return fmt.Errorf("MAX_SOFTWARE_SIZE must be positive, got %d", c.MaxSoftwareSize)
	}

	switch c.DatabaseType {
	case DatabaseTypeSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DatabaseTypePostgreSQL:
		if c.PostgreSQL == nil || c.PostgreSQL.Host == "" {
			return fmt.Errorf("POSTGRES_HOST cannot be empty")
		}
		if c.PostgreSQL.Database == "" {
			return fmt.Errorf("POSTGRES_DB cannot be empty")
		}
		if c.PostgreSQL.MaxConnections <= 0 {
			return fmt.Errorf("POSTGRES_MAX_CONNS must be positive, got %d", c.PostgreSQL.MaxConnections)
		}
	default:
		return fmt.Errorf("DB_TYPE must be %q or %q, got %q", DatabaseTypeSQLite, DatabaseTypePostgreSQL, c.DatabaseType)
	}

	if c.UploadTimeout <= 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must be positive, got %s", c.UploadTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	if c.SessionExpiryHours <= 0 {
		return fmt.Errorf("SESSION_EXPIRY_HOURS must be positive, got %d", c.SessionExpiryHours)
	}

	if c.RateLimitLogin <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN must be positive, got %d", c.RateLimitLogin)
	}

	switch c.TrustProxyHeaders {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("TRUST_PROXY_HEADERS must be auto, true or false, got %q", c.TrustProxyHeaders)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	return nil
}

// SetupLogger builds the process logger from the configured level and format
// and installs it as the slog default.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5m") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, expected debug, info, warn or error", level)
	}
}
