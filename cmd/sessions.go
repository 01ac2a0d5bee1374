package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/session"
)

var sessionsPage int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation history",
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, store session.Store) error {
				return runSessionsList(cmd, cfg, store)
			})
		},
	}
	listCmd.Flags().IntVarP(&sessionsPage, "page", "p", 1, "page of the listing")

	renameCmd := &cobra.Command{
		Use:   "rename <session-id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.Config, store session.Store) error {
				return runSessionsRename(cmd, store, args[0], args[1])
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.Config, store session.Store) error {
				return runSessionsDelete(cmd, store, args[0])
			})
		},
	}

	sessionsCmd.AddCommand(listCmd, renameCmd, deleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// withStore loads config, opens the right backend and runs fn.
func withStore(fn func(*config.Config, session.Store) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(cfg, store)
}

func runSessionsList(cmd *cobra.Command, cfg *config.Config, store session.Store) error {
	page, err := store.List(cmd.Context(), sessionsPage, cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(page.Sessions) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, s := range page.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !page.IsLastPage {
		fmt.Printf("\n%d total; use --page %d for more\n", page.Total, sessionsPage+1)
	}
	return nil
}

func runSessionsRename(cmd *cobra.Command, store session.Store, id, title string) error {
	if err := store.Rename(cmd.Context(), id, title); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("no session with id %s", id)
		}
		return err
	}
	fmt.Println("Renamed.")
	return nil
}

func runSessionsDelete(cmd *cobra.Command, store session.Store, id string) error {
	if err := store.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Println("Deleted.")
	return nil
}
