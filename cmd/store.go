package cmd

import (
	"fmt"
	"net/http"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/database"
	"github.com/parley-chat/parley/internal/log"
	"github.com/parley-chat/parley/internal/session"
)

// openStore constructs the session backend for the current auth state:
// the REST-backed store for signed-in users, the device-local store
// otherwise. The returned close function releases the local database
// when one was opened.
func openStore(cfg *config.Config, logger log.Logger) (session.Store, func(), error) {
	if cfg.Authenticated() {
		store := session.NewRemoteStore(cfg.Endpoint, cfg.Token, http.DefaultClient,
			logger.With("component", "session"))
		return store, func() {}, nil
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	store := session.NewLocalStore(db, logger.With("component", "session"))
	return store, func() { _ = db.Close() }, nil
}
