// Package session provides conversation persistence behind a single
// Store interface with two interchangeable backends: an ephemeral
// device-local store for anonymous visitors and a REST-backed store for
// authenticated users.
//
// The backend is selected at construction time by the caller. Nothing
// below the constructors branches on auth state.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parley-chat/parley/internal/transcript"
)

// ErrNotFound indicates the requested session does not exist. It is a
// recoverable, user-facing "start a new conversation" state, as opposed
// to generic failures which are retryable. Check with errors.Is.
var ErrNotFound = errors.New("session not found")

// MaxTitleLength bounds session titles in listings and renames.
const MaxTitleLength = 100

// DefaultTitle is the placeholder title of a session that has no usable
// user text yet. It is replaced by the first message's derived title.
const DefaultTitle = "New conversation"

// Session is a persisted conversation.
type Session struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Messages  []*transcript.Message `json:"messages"`
}

// Summary is the listing projection of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one page of the session history listing.
type Page struct {
	Sessions   []Summary `json:"sessions"`
	Total      int       `json:"total"`
	IsLastPage bool      `json:"isLastPage"`
}

// Store persists sessions. Implementations: LocalStore (ephemeral,
// device-local) and RemoteStore (authenticated, REST).
type Store interface {
	// Create makes a new empty session.
	Create(ctx context.Context) (*Session, error)

	// Load retrieves a session by id. Returns ErrNotFound if it does
	// not exist.
	Load(ctx context.Context, id string) (*Session, error)

	// List returns one page of session summaries, most recently
	// updated first. page is 1-based.
	List(ctx context.Context, page, limit int) (Page, error)

	// Rename updates a session's title.
	Rename(ctx context.Context, id, title string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Save persists the session's transcript after a turn completes.
	Save(ctx context.Context, sess *Session) error
}

// DeriveTitle produces a listing title from the first user message.
func DeriveTitle(text string) string {
	title := strings.TrimSpace(text)
	if title == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		runes := []rune(title)
		title = string(runes[:MaxTitleLength-1]) + "…"
	}
	return title
}
