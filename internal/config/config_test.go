package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Endpoint:     "https://api.parley.chat",
		DataDir:      "/tmp/parley",
		HistoryLimit: DefaultHistoryLimit,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("endpoint must be an absolute http(s) URL", func(t *testing.T) {
		for _, endpoint := range []string{
			"",
			"api.parley.chat",
			"/api",
			"ftp://api.parley.chat",
		} {
			cfg := validConfig()
			cfg.Endpoint = endpoint
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidEndpoint, "endpoint: %q", endpoint)
		}
	})

	t.Run("history limit bounds", func(t *testing.T) {
		for _, limit := range []int{0, -1, MaxHistoryLimit + 1} {
			cfg := validConfig()
			cfg.HistoryLimit = limit
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidHistoryLimit, "limit: %d", limit)
		}

		cfg := validConfig()
		cfg.HistoryLimit = MaxHistoryLimit
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Authenticated(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.Authenticated(), "no token means anonymous")

	cfg.Token = "tok-1"
	assert.True(t, cfg.Authenticated())

	cfg.Anonymous = true
	assert.False(t, cfg.Authenticated(), "anonymous overrides a configured token")
}

func TestConfig_DatabasePath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, filepath.Join("/tmp/parley", "parley.db"), cfg.DatabasePath())
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://api.parley.chat", cfg.Endpoint)
		assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit)
		assert.NotEmpty(t, cfg.DataDir)
		assert.False(t, cfg.Debug)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PARLEY_ENDPOINT", "http://localhost:8080")
		t.Setenv("PARLEY_TOKEN", "tok-env")
		t.Setenv("PARLEY_DEBUG", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
		assert.Equal(t, "tok-env", cfg.Token)
		assert.True(t, cfg.Debug)
		assert.True(t, cfg.Authenticated())
	})

	t.Run("invalid environment value fails validation", func(t *testing.T) {
		t.Setenv("PARLEY_ENDPOINT", "not-a-url")

		_, err := Load()
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})
}
