// Package cmd provides CLI commands for the Parley chat client.
//
// Commands:
//   - chat: Interactive terminal chat with Bubble Tea TUI
//   - sessions: List, rename and delete conversation history
//   - version: Show version information
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - chat with your bots from the terminal",
	Long: `Parley is the terminal client for the Parley chatbot platform.

Running parley without arguments starts an interactive chat. Anonymous
conversations stay on this device; sign in with PARLEY_TOKEN to sync
them with your workspace.`,
	RunE: runChat,
}

// Execute is the main entry point for the parley CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and installs the process logger.
func loadConfig() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
