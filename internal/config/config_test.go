package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithEnvDSN(t *testing.T) {
	t.Setenv("MAILDESK_DATABASE_DSN", "postgres://localhost/maildesk?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "maildesk", cfg.App.Name)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/maildesk?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 30*24*time.Hour, cfg.Matching.SubjectWindow)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: sqlite3
  dsn: file:maildesk.db
webhook:
  secret: topsecret
matching:
  subject_window: 168h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "topsecret", cfg.Webhook.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.Matching.SubjectWindow)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://file-value
`), 0o600))
	t.Setenv("MAILDESK_DATABASE_DSN", "postgres://env-value")
	t.Setenv("MAILDESK_WEBHOOK_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-value", cfg.Database.DSN)
	assert.Equal(t, "env-secret", cfg.Webhook.Secret)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://x"},
			Storage:  StorageConfig{Backend: "filesystem"},
			Matching: MatchingConfig{SubjectWindow: time.Hour},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Matching.SubjectWindow = 0
	assert.Error(t, cfg.Validate())
}
