// Package config reads the frontend's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const devSecret = "familytask-dev-secret"

type Config struct {
	Port       string
	APIURL     string
	DBPath     string
	Secret     string
	LogLevel   string
	LogFormat  string
	NotifyTTL  time.Duration
	APITimeout time.Duration
	// SecureCookies is set when the frontend is served over HTTPS.
	SecureCookies bool
}

// Load reads FAMILYTASK_* variables, falling back to defaults for unset ones.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:      envOr(getenv, "FAMILYTASK_PORT", "8080"),
		APIURL:    envOr(getenv, "FAMILYTASK_API_URL", "http://localhost:5000"),
		DBPath:    envOr(getenv, "FAMILYTASK_DB_PATH", "familytask.db"),
		Secret:    getenv("FAMILYTASK_SECRET"),
		LogLevel:  envOr(getenv, "FAMILYTASK_LOG_LEVEL", "info"),
		LogFormat: envOr(getenv, "FAMILYTASK_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.NotifyTTL, err = durationOr(getenv, "FAMILYTASK_NOTIFY_TTL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.APITimeout, err = durationOr(getenv, "FAMILYTASK_API_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if v := getenv("FAMILYTASK_SECURE_COOKIES"); v != "" {
		if cfg.SecureCookies, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("FAMILYTASK_SECURE_COOKIES: %w", err)
		}
	}
	return cfg, nil
}

// Validate checks settings that have no usable default. A missing secret is
// only tolerated when dev is set.
func (c *Config) Validate(dev bool) error {
	if c.Secret == "" {
		if !dev {
			return errors.New("FAMILYTASK_SECRET is required (use --dev for local runs)")
		}
		c.Secret = devSecret
	}
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if c.NotifyTTL <= 0 {
		return errors.New("notify ttl must be positive")
	}
	return nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
