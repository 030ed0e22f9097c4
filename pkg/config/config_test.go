package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Pool.Capacity)
	assert.Equal(t, 15*time.Second, cfg.Engine.LoadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.QualityCooldown)
	assert.Equal(t, 3, cfg.Recovery.MaxRetries)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero load timeout", func(c *Config) { c.Engine.LoadTimeout = 0 }},
		{"zero pool capacity", func(c *Config) { c.Pool.Capacity = 0 }},
		{"master volume above one", func(c *Config) { c.Audio.MasterVolume = 1.5 }},
		{"max delay below base delay", func(c *Config) { c.Recovery.MaxDelay = time.Second; c.Recovery.BaseDelay = 2 * time.Second }},
		{"jitter fraction of one", func(c *Config) { c.Recovery.JitterFraction = 1.0 }},
		{"empty token secret", func(c *Config) { c.Bridge.TokenSecret = "" }},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"rate limiting enabled without rate", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.RequestsPerSecond = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9999"
pool:
  capacity: 4
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 4, cfg.Pool.Capacity)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Engine.LoadTimeout)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  capacity: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PLAYGRID_SERVER_ADDRESS", ":7070")
	t.Setenv("PLAYGRID_LOG_LEVEL", "debug")
	t.Setenv("PLAYGRID_BRIDGE_TOKEN_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "env-secret", cfg.Bridge.TokenSecret)
}
