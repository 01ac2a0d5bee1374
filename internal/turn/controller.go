// Package turn orchestrates one send-message turn: it opens the chat
// stream, drives decoded events through the transcript reducer, and
// exposes cancellation, retry and error classification to the host UI.
package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/parley-chat/parley/internal/session"
	"github.com/parley-chat/parley/internal/stream"
	"github.com/parley-chat/parley/internal/transcript"
)

// Config configures a Controller.
type Config struct {
	// Endpoint is the chat API base URL, e.g. "https://api.parley.chat".
	Endpoint string

	// Token is the bearer token for authenticated callers. Empty for
	// anonymous visitors.
	Token string

	// Client is the HTTP client used for turn submission. Nil falls
	// back to http.DefaultClient; timeouts are the transport layer's
	// concern.
	Client *http.Client

	// Store persists the session when a turn completes.
	Store session.Store

	// Logger for debugging. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Controller drives turns for exactly one session. All transcript
// mutation goes through the reducer from the controller's read loop, so
// a single mutex is enough to serialize turns.
//
// Send blocks until the turn finishes; hosts run it on their own
// goroutine (the TUI wraps it in a command) and use Stop to cancel from
// the event loop.
type Controller struct {
	endpoint string
	token    string
	client   *http.Client
	store    session.Store
	logger   *slog.Logger

	transcript *transcript.Transcript

	mu          sync.Mutex
	sess        *session.Session
	attachments []*StagedAttachment
	cancel      context.CancelFunc
	active      bool
	lastErr     error
}

// New creates a controller with an empty transcript.
func New(cfg Config) *Controller {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		client:     client,
		store:      cfg.Store,
		logger:     logger,
		transcript: transcript.New(),
	}
}

// Transcript returns the controller's transcript for observation.
func (c *Controller) Transcript() *transcript.Transcript {
	return c.transcript
}

// Session returns the session this controller is bound to, nil before
// the first message.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// UseSession binds the controller to a loaded session and replaces the
// transcript with its history.
func (c *Controller) UseSession(sess *session.Session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	c.transcript.SetMessages(sess.Messages)
	c.transcript.Notify()
}

// Active reports whether a turn is currently streaming.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// LastError returns the terminal error of the most recent turn, nil if
// it completed cleanly. Check errors.Is(err, ErrCreditsExhausted) to
// decide between a paywall and a generic error bubble.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// chatRequest is the turn submission body.
type chatRequest struct {
	Message       string   `json:"message"`
	SessionID     string   `json:"sessionId,omitempty"`
	AttachmentIDs []string `json:"attachmentIds,omitempty"`
}

// Send submits one user turn and blocks until its stream ends. It
// appends the terminal user message and a mutable assistant message,
// then drives decoded events through the reducer. Staged attachments
// are detached into the request. Returns ErrTurnActive if a turn is
// already streaming and ErrEmptyMessage when there is nothing to send.
func (c *Controller) Send(ctx context.Context, text string) error {
	return c.send(ctx, text, true)
}

// Stop cancels the in-flight request. The assistant message is left in
// whatever partial state it reached and finalized as-is, not rolled
// back. Idempotent when no turn is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Retry removes the last assistant message if it ended in an error
// state and resubmits the prior user message's text as a new turn. A
// no-op when the last message is not in an error state.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrTurnActive
	}
	c.mu.Unlock()

	if !c.transcript.RemoveLastAssistantIfErrored() {
		return nil
	}
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.transcript.Notify()

	text, ok := c.transcript.LastUserText()
	if !ok {
		return nil
	}
	// The user message is already in the transcript; only the
	// assistant side of the turn is re-issued.
	return c.send(ctx, text, false)
}

// ClearError clears the last-observed error, optionally also removing
// the failed assistant message. Used when a modal (e.g. a credit
// exhaustion upsell) intercepts the error instead of showing it inline.
func (c *Controller) ClearError(removeFailedMessage bool) {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	if removeFailedMessage {
		if c.transcript.RemoveLastAssistantIfErrored() {
			c.transcript.Notify()
		}
	}
}

func (c *Controller) send(ctx context.Context, text string, appendUser bool) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrTurnActive
	}

	text = strings.TrimSpace(text)
	attachmentIDs := c.readyAttachmentIDsLocked()
	if text == "" && len(attachmentIDs) == 0 {
		c.mu.Unlock()
		return ErrEmptyMessage
	}

	// The session is created on the first message of a conversation.
	if c.sess == nil {
		sess, err := c.store.Create(ctx)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to create session: %w", err)
		}
		c.sess = sess
	}
	sessID := c.sess.ID

	// Detach the staging area only once the turn is actually issued; a
	// rejected send must leave staged attachments untouched.
	c.attachments = nil

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.active = true
	c.lastErr = nil
	c.mu.Unlock()
	defer cancel()

	if appendUser {
		c.transcript.AppendUser(text)
	}
	c.transcript.BeginTurn()
	c.transcript.Notify()

	streamErr := c.runStream(streamCtx, chatRequest{
		Message:       text,
		SessionID:     sessID,
		AttachmentIDs: attachmentIDs,
	})

	c.transcript.EndTurn()
	c.mu.Lock()
	c.active = false
	c.cancel = nil
	c.lastErr = streamErr
	c.mu.Unlock()
	c.transcript.Notify()

	c.persist(text)
	return streamErr
}

// runStream performs the HTTP round trip and drives the reducer. The
// returned error is the turn's terminal error, nil for a clean finish
// or a user-initiated stop.
func (c *Controller) runStream(ctx context.Context, req chatRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Stopped before the stream opened: nothing streamed, the
			// empty assistant message is finalized as-is.
			return nil
		}
		// Turn-submission failure surfaces the same way as a stream
		// error.
		return c.fail(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.fail(strings.TrimSpace(string(snippet)))
	}

	var terminalErr error
	finished := false
	for ev, readErr := range stream.Events(resp.Body, c.logger) {
		if readErr != nil {
			if ctx.Err() != nil {
				// Cancellation is best effort, immediate: buffered but
				// unprocessed bytes are discarded.
				return nil
			}
			return c.fail(readErr.Error())
		}

		c.transcript.Apply(ev)
		c.transcript.Notify()

		switch ev.Type {
		case stream.EventError:
			if ev.ToolCallID == "" && terminalErr == nil {
				// The reducer already froze the message; keep draining
				// the wire so the connection shuts down cleanly.
				terminalErr = classify(ev.Error)
			}
		case stream.EventFinish:
			finished = true
		}
	}

	if terminalErr != nil {
		return terminalErr
	}
	if !finished {
		if ctx.Err() != nil {
			return nil
		}
		// The stream closed with no prior finish: an aborted read.
		return c.fail("stream ended unexpectedly")
	}
	return nil
}

// fail marks the active assistant message as errored and returns the
// classified error.
func (c *Controller) fail(message string) error {
	if message == "" {
		message = transcript.FallbackErrorMessage
	}
	c.transcript.Fail(message)
	c.transcript.Notify()
	return classify(message)
}

// persist syncs the transcript into the session and saves it. Save
// failures are surfaced in the log, not retried: persistence errors
// never corrupt the in-memory transcript or block the next turn.
func (c *Controller) persist(lastUserText string) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	sess.Messages = c.transcript.Messages()
	if sess.Title == "" || sess.Title == session.DefaultTitle {
		sess.Title = session.DeriveTitle(lastUserText)
	}

	// Detached from the turn's context: a stopped turn still persists
	// its partial transcript.
	if err := c.store.Save(context.Background(), sess); err != nil {
		c.logger.Warn("failed to save session", "id", sess.ID, "error", err)
	}
}
