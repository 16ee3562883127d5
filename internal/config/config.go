// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port      string
	PublicURL string // Optional: override auto-detected URL for reverse proxy setups

	DBPath      string // SQLite database path
	DatabaseURL string // Optional: PostgreSQL connection string; takes precedence over DBPath

	UploadDir          string
	MaxFileSize        int64 // Maximum upload size in bytes, enforced against bytes read
	SlugLength         int   // Length of generated file identifiers (4-32)
	CacheMaxAgeSeconds int   // Cache-Control max-age for served files

	RateLimitPerMinute int // Requests per minute per client IP

	AdminPassword      string // Plaintext from env, hashed at startup; empty disables admin
	AdminMaxFailures   int    // Consecutive failures before lockout
	AdminLockStep      int    // Base lock duration in seconds
	AdminLockMax       int    // Cap on escalated lock duration in seconds

	CleanupEnabled         bool
	CleanupIntervalMinutes int
	RetentionHours         int // Files older than this are cleanup candidates

	MirrorEnabled     bool
	MirrorWorkers     int // Size of the mirror worker pool
	MirrorMaxAttempts int // Upload attempts before a mirror is marked failed

	S3Bucket          string
	S3Region          string
	S3Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool // Path-style addressing (required for MinIO)
	S3Prefix          string // Optional key prefix for mirrored objects
}

// Load reads configuration from a .env file (if present) and environment
// variables with sensible defaults
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", ""),

		DBPath:      getEnv("DB_PATH", "./cdn.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		MaxFileSize:        getEnvInt64("MAX_FILE_SIZE_BYTES", 52428800), // 50MB default
		SlugLength:         getEnvInt("FILE_ID_LENGTH", 8),
		CacheMaxAgeSeconds: getEnvInt("CACHE_MAX_AGE_SECONDS", 86400),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		AdminMaxFailures: getEnvInt("ADMIN_MAX_FAILURES", 3),
		AdminLockStep:    getEnvInt("ADMIN_LOCK_STEP_SECONDS", 60),
		AdminLockMax:     getEnvInt("ADMIN_LOCK_MAX_SECONDS", 3600),

		CleanupEnabled:         getEnvBool("ENABLE_CLEANER", true),
		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
		RetentionHours:         getEnvInt("DELETE_AFTER_HOURS", 72),

		MirrorEnabled:     getEnvBool("MIRROR_ENABLED", false),
		MirrorWorkers:     getEnvInt("MIRROR_WORKERS", 2),
		MirrorMaxAttempts: getEnvInt("MIRROR_MAX_ATTEMPTS", 5),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:       getEnvBool("S3_PATH_STYLE", false),
		S3Prefix:          getEnv("S3_PREFIX", ""),
	}

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

	if c.DBPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("one of DB_PATH or DATABASE_URL must be set")
	}

	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_BYTES must be positive, got %d", c.MaxFileSize)
	}

	if c.SlugLength < 4 || c.SlugLength > 32 {
		return fmt.Errorf("FILE_ID_LENGTH must be between 4 and 32, got %d", c.SlugLength)
	}

	if c.CacheMaxAgeSeconds < 0 {
		return fmt.Errorf("CACHE_MAX_AGE_SECONDS must not be negative, got %d", c.CacheMaxAgeSeconds)
	}

	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}

	if c.AdminMaxFailures <= 0 {
		return fmt.Errorf("ADMIN_MAX_FAILURES must be positive, got %d", c.AdminMaxFailures)
	}

	if c.AdminLockStep <= 0 {
		return fmt.Errorf("ADMIN_LOCK_STEP_SECONDS must be positive, got %d", c.AdminLockStep)
	}

	if c.AdminLockMax < c.AdminLockStep {
		return fmt.Errorf("ADMIN_LOCK_MAX_SECONDS (%d) cannot be less than ADMIN_LOCK_STEP_SECONDS (%d)", c.AdminLockMax, c.AdminLockStep)
	}

	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive, got %d", c.CleanupIntervalMinutes)
	}

	if c.RetentionHours < 0 {
		return fmt.Errorf("DELETE_AFTER_HOURS must not be negative, got %d", c.RetentionHours)
	}

	if c.MirrorEnabled {
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when MIRROR_ENABLED is true")
		}
		if c.MirrorWorkers <= 0 {
			return fmt.Errorf("MIRROR_WORKERS must be positive, got %d", c.MirrorWorkers)
		}
		if c.MirrorMaxAttempts <= 0 {
			return fmt.Errorf("MIRROR_MAX_ATTEMPTS must be positive, got %d", c.MirrorMaxAttempts)
		}
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an int or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an environment variable as an int64 or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a bool or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
