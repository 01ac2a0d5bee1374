package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-chat/parley/internal/tui"
	"github.com/parley-chat/parley/internal/turn"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "resume an existing session by id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctrl := turn.New(turn.Config{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		Store:    store,
		Logger:   logger.With("component", "turn"),
	})

	ctx := cmd.Context()
	if chatSessionID != "" {
		sess, err := store.Load(ctx, chatSessionID)
		if err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
		ctrl.UseSession(sess)
	}

	return tui.Run(ctx, ctrl)
}
