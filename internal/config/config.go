package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

type Config struct {
	AppEnv     string
	ServerPort string
	LogLevel   string

	Pharmacy struct {
		APIURL    string
		Timeout   time.Duration
		RateLimit float64
	}

	Storage struct {
		Backend     string
		Path        string
		DatabaseURL string
		RedisURL    string
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "dev"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	cfg.Pharmacy.APIURL = getEnv("PHARMACY_API_URL", "http://localhost:8000/api/v1")

	timeout, err := time.ParseDuration(getEnv("PHARMACY_API_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PHARMACY_API_TIMEOUT: %w", err)
	}
	cfg.Pharmacy.Timeout = timeout

	rps, err := strconv.ParseFloat(getEnv("PHARMACY_API_RPS", "0"), 64)
	if err != nil || rps < 0 {
		return nil, fmt.Errorf("invalid PHARMACY_API_RPS: %q", os.Getenv("PHARMACY_API_RPS"))
	}
	cfg.Pharmacy.RateLimit = rps

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", StorageFile)
	cfg.Storage.Path = getEnv("STORAGE_PATH", ".storefront/state.json")
	cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Storage.RedisURL = os.Getenv("REDIS_URL")

	switch cfg.Storage.Backend {
	case StorageFile, StorageMemory:
	case StoragePostgres:
		if cfg.Storage.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set for the postgres storage backend")
		}
	case StorageRedis:
		if cfg.Storage.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL must be set for the redis storage backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
