package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProfileDevelopment, cfg.Profile)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "emails.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 30, cfg.SMTP.TimeoutSeconds)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  host: 0.0.0.0
  port: 9090
database:
  path: /var/lib/mailrelay/mail.db
queue:
  workers: 8
  max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "/var/lib/mailrelay/mail.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("APIKEY", "sekrit")
	t.Setenv("QUEUE_WORKERS", "6")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("DATABASE_PATH", "override.db")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sekrit", cfg.Auth.APIKey)
	assert.Equal(t, 6, cfg.Queue.Workers)
	assert.Equal(t, 1, cfg.Queue.MaxRetries)
	assert.Equal(t, "override.db", cfg.Database.Path)
}

func TestProductionProfileWorkerDefault(t *testing.T) {
	t.Setenv("APP_ENV", ProfileProduction)

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Queue.Workers)
}

func TestExplicitWorkersBeatProfile(t *testing.T) {
	t.Setenv("APP_ENV", ProfileProduction)
	t.Setenv("QUEUE_WORKERS", "12")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Queue.Workers)
}
