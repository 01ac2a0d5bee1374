// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (PARLEY_* runtime override)
//  2. Config file (~/.parley/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrapped with context via fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidEndpoint indicates the chat API endpoint is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")
)

// History limit bounds, to keep listings and loads memory-safe.
const (
	DefaultHistoryLimit = 50
	MinHistoryLimit     = 1
	MaxHistoryLimit     = 500
)

// Config holds all client settings.
type Config struct {
	// Endpoint is the Parley API base URL.
	Endpoint string `mapstructure:"endpoint"`

	// Token is the bearer token of an authenticated user. Empty means
	// anonymous: sessions stay on this device.
	Token string `mapstructure:"token"`

	// DataDir holds device-local state (the ephemeral session store).
	DataDir string `mapstructure:"data_dir"`

	// Anonymous forces the ephemeral local store even when a token is
	// configured.
	Anonymous bool `mapstructure:"anonymous"`

	// HistoryLimit caps session listing page size.
	HistoryLimit int `mapstructure:"history_limit"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Authenticated reports whether the remote session backend should be
// used. The decision is made once, here; nothing downstream branches on
// auth state.
func (c *Config) Authenticated() bool {
	return c.Token != "" && !c.Anonymous
}

// DatabasePath returns the path of the local session database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "parley.db")
}

// Load reads configuration from file, environment and defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(home, ".parley")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("PARLEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine: env + defaults apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("endpoint", "https://api.parley.chat")
	viper.SetDefault("data_dir", configDir)
	viper.SetDefault("history_limit", DefaultHistoryLimit)
	viper.SetDefault("anonymous", false)
	viper.SetDefault("debug", false)
}

// Validate checks value ranges. Tokens are never logged.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if c.HistoryLimit < MinHistoryLimit || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("%w: %d (must be %d-%d)",
			ErrInvalidHistoryLimit, c.HistoryLimit, MinHistoryLimit, MaxHistoryLimit)
	}
	return nil
}
