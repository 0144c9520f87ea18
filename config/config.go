package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all configurable server parameters.
type Config struct {
	HTTPPort    int    `json:"http_port"`
	DatabaseURL string `json:"database_url"`
	SeedFile    string `json:"seed_file"`
	LogLevel    string `json:"log_level"` // debug, info, warn, error

	// Redis cache for the initial-data bundle. Empty RedisAddr disables caching.
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
	BundleCacheTTLSec int    `json:"bundle_cache_ttl_sec"`

	AdminPassword       string `json:"admin_password"`
	AdminSessionSecret  string `json:"admin_session_secret"`
	AdminSessionHours   int    `json:"admin_session_hours"`
	LoginFailureDelayMS int    `json:"login_failure_delay_ms"`

	// AuthJWKSURL optionally lets an external identity provider authorize admin calls
	// with a bearer token instead of the session cookie.
	AuthJWKSURL string `json:"auth_jwks_url"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		HTTPPort:            8080,
		SeedFile:            "seed.yaml",
		LogLevel:            "info",
		BundleCacheTTLSec:   300,
		AdminSessionHours:   24,
		LoginFailureDelayMS: 2000,
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config.json", "tag", "config", "err", err)
		}
	}

	overrideInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.SeedFile, "SEED_FILE")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideInt(&cfg.RedisDB, "REDIS_DB")
	overrideInt(&cfg.BundleCacheTTLSec, "BUNDLE_CACHE_TTL_SEC")
	overrideString(&cfg.AdminPassword, "ADMIN_PASSWORD")
	overrideString(&cfg.AdminSessionSecret, "ADMIN_SESSION_SECRET")
	overrideInt(&cfg.AdminSessionHours, "ADMIN_SESSION_HOURS")
	overrideInt(&cfg.LoginFailureDelayMS, "LOGIN_FAILURE_DELAY_MS")
	overrideString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")

	return cfg
}

// BundleCacheTTL returns the cache lifetime of the initial-data bundle.
func (c *Config) BundleCacheTTL() time.Duration {
	return time.Duration(c.BundleCacheTTLSec) * time.Second
}

// AdminSessionTTL returns how long an admin login stays valid.
func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionHours) * time.Hour
}

// LoginFailureDelay is how long a wrong password answer is held back.
func (c *Config) LoginFailureDelay() time.Duration {
	return time.Duration(c.LoginFailureDelayMS) * time.Millisecond
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid environment value", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
