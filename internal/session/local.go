package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Key layout of the device-local store: one namespaced key per session
// id, plus a secondary index of summaries for the history listing.
const (
	localKeyPrefix = "parley:session:"
	localIndexKey  = "parley:sessions"
)

// LocalStore is the ephemeral backend: sessions live only in a bounded
// device-local key/value table and are never synced to a server.
//
// The store never expires sessions itself; eviction, if any, is the
// host's concern.
type LocalStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewLocalStore creates a local store over an opened, migrated
// database. A nil logger falls back to slog.Default.
func NewLocalStore(db *sql.DB, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{db: db, logger: logger, now: time.Now}
}

// Create makes a new empty session and indexes it.
func (s *LocalStore) Create(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Debug("created local session", "id", sess.ID)
	return sess, nil
}

// Load retrieves a session by id.
func (s *LocalStore) Load(ctx context.Context, id string) (*Session, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", localKeyPrefix+id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(value, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns all sessions, most recently updated first. The local
// backend has no true pagination: every call returns everything and
// IsLastPage is always true.
func (s *LocalStore) List(ctx context.Context, page, limit int) (Page, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return Page{}, err
	}
	return Page{Sessions: index, Total: len(index), IsLastPage: true}, nil
}

// Rename updates a session's title in place and in the index.
func (s *LocalStore) Rename(ctx context.Context, id, title string) error {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	sess.Title = DeriveTitle(title)
	return s.Save(ctx, sess)
}

// Delete removes a session and its index entry. Idempotent.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM kv WHERE key = ?", localKeyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	index, err := s.loadIndexTx(ctx, tx)
	if err != nil {
		return err
	}
	index = slices.DeleteFunc(index, func(e Summary) bool { return e.ID == id })
	if err := s.saveIndexTx(ctx, tx, index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("deleted local session", "id", id)
	return nil
}

// Save persists the full session under its key and refreshes its index
// entry. The value write and the index write are atomic.
func (s *LocalStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()

	value, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		localKeyPrefix+sess.ID, value); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}

	index, err := s.loadIndexTx(ctx, tx)
	if err != nil {
		return err
	}
	entry := Summary{ID: sess.ID, Title: sess.Title, UpdatedAt: sess.UpdatedAt}
	if i := slices.IndexFunc(index, func(e Summary) bool { return e.ID == sess.ID }); i >= 0 {
		index[i] = entry
	} else {
		index = append(index, entry)
	}
	slices.SortFunc(index, func(a, b Summary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if err := s.saveIndexTx(ctx, tx, index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("saved local session", "id", sess.ID, "messages", len(sess.Messages))
	return nil
}

func (s *LocalStore) loadIndex(ctx context.Context) ([]Summary, error) {
	return s.loadIndexFrom(ctx, s.db.QueryRowContext)
}

func (s *LocalStore) loadIndexTx(ctx context.Context, tx *sql.Tx) ([]Summary, error) {
	return s.loadIndexFrom(ctx, tx.QueryRowContext)
}

func (s *LocalStore) loadIndexFrom(ctx context.Context, queryRow func(context.Context, string, ...any) *sql.Row) ([]Summary, error) {
	var value []byte
	err := queryRow(ctx, "SELECT value FROM kv WHERE key = ?", localIndexKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session index: %w", err)
	}

	var index []Summary
	if err := json.Unmarshal(value, &index); err != nil {
		// A corrupt index is rebuilt from scratch rather than wedging
		// every listing.
		s.logger.Warn("session index corrupt, resetting", "error", err)
		return nil, nil
	}
	return index, nil
}

func (s *LocalStore) saveIndexTx(ctx context.Context, tx *sql.Tx, index []Summary) error {
	value, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode session index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		localIndexKey, value); err != nil {
		return fmt.Errorf("failed to save session index: %w", err)
	}
	return nil
}
