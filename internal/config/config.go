package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Profile selects a set of runtime defaults.
const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// Config holds all configuration for the dispatcher.
type Config struct {
	Profile  string         `yaml:"profile"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the embedded database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig holds dispatcher tuning.
type QueueConfig struct {
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

// SMTPConfig holds delivery transport tuning.
type SMTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured SMTP timeout as a duration.
func (c SMTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig holds the shared-secret API key checked by the HTTP layer.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads and parses the configuration file. A missing file is not an
// error; defaults and environment overrides are enough to run.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Profile = v
	}
	if cfg.Profile == ProfileProduction && cfg.Queue.Workers == defaultWorkers {
		cfg.Queue.Workers = productionWorkers
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, ok := envInt("SERVER_PORT"); ok {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v, ok := envInt("QUEUE_WORKERS"); ok {
		cfg.Queue.Workers = v
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		cfg.Queue.MaxRetries = v
	}
	if v := os.Getenv("APIKEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	return cfg, nil
}

const (
	defaultWorkers    = 2
	productionWorkers = 4
)

func (c *Config) applyDefaults() {
	if c.Profile == "" {
		c.Profile = ProfileDevelopment
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "emails.db"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = defaultWorkers
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.SMTP.TimeoutSeconds == 0 {
		c.SMTP.TimeoutSeconds = 30
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
