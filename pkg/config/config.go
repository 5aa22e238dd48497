// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all service settings.
type Config struct {
	// Signal generator
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// Telemetry feed
	TelemetryURL string

	// Sync loop
	SyncInterval time.Duration
	BatchSize    int
	FeedCapacity int

	// Persistence. RedisAddr empty means file-backed storage in DataDir.
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP server
	ServerPort string
	LogLevel   string
}

// Load reads configuration from .env and the process environment.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", ""),
		TelemetryURL:  getEnv("TELEMETRY_URL", ""),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 45*time.Second),
		BatchSize:     getEnvInt("SYNC_BATCH_SIZE", 2),
		FeedCapacity:  getEnvInt("FEED_CAPACITY", 30),
		DataDir:       getEnv("DATA_DIR", "data"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	logger.Info().
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("sync_interval", cfg.SyncInterval).
		Int("batch_size", cfg.BatchSize).
		Bool("redis", cfg.RedisAddr != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
