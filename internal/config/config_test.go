package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultSession(), cfg.Session)
	assert.Equal(t, 10*time.Second, cfg.Fetch.RequestTimeout)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 500, cfg.Server.JournalSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hlstail.yaml")
	content := `
log_level: debug
session:
  stale_timeout: 90s
  max_retries: 2
fetch:
  user_agent: test-agent
server:
  listen_addr: ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.Session.StaleTimeout)
	assert.Equal(t, 2, cfg.Session.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Session.RefreshInterval, "unset keys keep their default")
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HLSTAIL_SESSION_MAX_RETRIES", "7")
	t.Setenv("HLSTAIL_LOG_LEVEL", "warn")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Session.MaxRetries)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{Session: DefaultSession(), Server: Server{JournalSize: 1}}
	assert.NoError(t, cfg.Validate())

	cfg.Session.StaleTimeout = 0
	cfg.Session.BackoffStep = -time.Millisecond
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_timeout")
	assert.Contains(t, err.Error(), "backoff_step")
}

func TestValidateAcceptsDisabledRetries(t *testing.T) {
	cfg := Config{Session: DefaultSession(), Server: Server{JournalSize: 1}}
	cfg.Session.MaxRetries = -1
	assert.NoError(t, cfg.Validate())
}
