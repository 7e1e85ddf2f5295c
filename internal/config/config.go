package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration surface of the service.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Port            string
	AllowedOrigins  string // comma-separated; empty disables CORS
	BodyLimitBytes  int64
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// CacheConfig holds per-category TTL overrides, in seconds. Zero means use
// the built-in default.
type CacheConfig struct {
	StockTTL        time.Duration
	PeriodPricesTTL time.Duration
	NCRsTTL         time.Duration
}

// Load reads environment variables (optionally from a .env file) and
// materializes a validated Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// Missing .env is fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getenvWithDefault("SERVER_PORT", "8080"),
			AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
			BodyLimitBytes:  getenvInt64("BODY_LIMIT_BYTES", 1<<20),
			ShutdownTimeout: getenvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Cache: CacheConfig{
			StockTTL:        getenvSeconds("CACHE_STOCK_TTL_SECONDS", 0),
			PeriodPricesTTL: getenvSeconds("CACHE_PERIOD_PRICES_TTL_SECONDS", 0),
			NCRsTTL:         getenvSeconds("CACHE_NCRS_TTL_SECONDS", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures required fields are populated.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	if c.Server.BodyLimitBytes <= 0 {
		return errors.New("BODY_LIMIT_BYTES must be positive")
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
