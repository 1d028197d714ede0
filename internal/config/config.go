package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseDSN string
	Env         string

	JWTSecret        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	DocumentStoreDir string
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (loaded by main) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "file:nexus.db?_fk=1")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "devjwtsecret")
	cfg.AccessTokenTTL = getDuration("ACCESS_TOKEN_TTL_MIN", 30) * time.Minute
	cfg.RefreshTokenTTL = getDuration("REFRESH_TOKEN_TTL_HOURS", 7*24) * time.Hour
	cfg.DocumentStoreDir = getEnv("DOCUMENT_STORE_DIR", "uploads")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(def)
}
