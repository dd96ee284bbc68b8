package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Auth    AuthConfig
	Capsule CapsuleConfig
	Archive ArchiveConfig
	Log     LogConfig
}

type ServerConfig struct {
	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type StoreConfig struct {
	Backend     string        `envconfig:"STORE_BACKEND" default:"postgres"`
	DatabaseURL string        `envconfig:"DB_URL"`
	BadgerPath  string        `envconfig:"BADGER_PATH" default:"./data/capsules"`
	Timeout     time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type CapsuleConfig struct {
	SecretLength  int           `envconfig:"SECRET_LENGTH" default:"10"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"10"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"24h"`
}

// ArchiveConfig enables the S3 expiry archive when Bucket is set.
type ArchiveConfig struct {
	Bucket   string `envconfig:"S3_BUCKET"`
	Region   string `envconfig:"S3_REGION" default:"us-east-1"`
	Endpoint string `envconfig:"S3_ENDPOINT"`
}

type LogConfig struct {
	Level slog.Level `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DB_URL is required for the %s backend", BackendPostgres)
		}
	case BackendBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the %s backend", BackendBadger)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Capsule.SecretLength < 1 {
		return fmt.Errorf("SECRET_LENGTH must be positive, got %d", c.Capsule.SecretLength)
	}
	if c.Capsule.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.Capsule.SweepInterval)
	}
	return nil
}
