package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RemoteStore is the authenticated backend: all operations are REST
// calls against the session service. Rename and Delete are
// fire-and-forget from the assembler's point of view - failures are
// surfaced to the caller, never retried automatically.
type RemoteStore struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteStore creates a remote store for the given API base URL and
// bearer token. A nil client falls back to http.DefaultClient; a nil
// logger falls back to slog.Default.
func NewRemoteStore(baseURL, token string, client *http.Client, logger *slog.Logger) *RemoteStore {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  logger,
	}
}

// Create makes a new session on the server.
func (s *RemoteStore) Create(ctx context.Context) (*Session, error) {
	var sess Session
	if err := s.do(ctx, http.MethodPost, "/api/sessions", nil, &sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Debug("created remote session", "id", sess.ID)
	return &sess, nil
}

// Load retrieves a session with its transcript.
func (s *RemoteStore) Load(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &sess); err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns one page of sessions. The server paginates for real.
func (s *RemoteStore) List(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var result Page
	if err := s.do(ctx, http.MethodGet, "/api/sessions?"+q.Encode(), nil, &result); err != nil {
		return Page{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	return result, nil
}

// Rename updates the session title.
func (s *RemoteStore) Rename(ctx context.Context, id, title string) error {
	body := map[string]string{"title": DeriveTitle(title)}
	if err := s.do(ctx, http.MethodPatch, "/api/sessions/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("rename session %s: %w", id, err)
	}
	return nil
}

// Delete removes the session on the server.
func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	if err := s.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Save is a sync point only. The server persists each turn as it
// streams, so there is nothing to upload when a turn finishes.
func (s *RemoteStore) Save(ctx context.Context, sess *Session) error {
	s.logger.Debug("remote session synced server-side", "id", sess.ID)
	return nil
}

// do issues one JSON request/response round trip. A 404 maps to
// ErrNotFound; other non-2xx statuses surface as generic failures with
// the response body as context.
func (s *RemoteStore) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
