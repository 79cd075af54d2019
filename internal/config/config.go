package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/yakoovad/squad-roster/internal/model"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingTokenSecret = errors.New("TOKEN_AUTH_SECRET is required")
)

type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Auth     AuthConfig

	LogLevel           string
	TeamCapacityPolicy model.CapacityPolicy
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("TOKEN_AUTH_SECRET", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HTTP.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "10"), 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "invalid DB_MAX_CONNS")
	}
	cfg.Database.MaxConns = int32(maxConns)

	if cfg.TeamCapacityPolicy, err = model.ParseCapacityPolicy(getEnv("TEAM_CAPACITY_POLICY", string(model.CapacityPolicyOverride))); err != nil {
		return nil, errors.Wrap(err, "invalid TEAM_CAPACITY_POLICY")
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Auth.TokenSecret == "" {
		return ErrMissingTokenSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
