package tui

import (
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/parley-chat/parley/internal/turn"
)

// Bubble Tea messages for the turn lifecycle.
type (
	// transcriptMsg signals that the reducer mutated the transcript
	// and the viewport should re-render from a fresh snapshot.
	transcriptMsg struct{}

	// turnDoneMsg signals that Send (or Retry) returned.
	turnDoneMsg struct {
		err error
	}
)

// startTurn runs one blocking Send on its own goroutine. The
// controller rejects overlapping turns itself; the TUI additionally
// keeps the send affordance disabled while streaming.
func (m *Model) startTurn(text string) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.ctrl.Send(m.ctx, text)}
	}
}

// startRetry re-issues the last failed turn.
func (m *Model) startRetry() tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: m.ctrl.Retry(m.ctx)}
	}
}

// waitForUpdate blocks until the transcript changes or the TUI shuts
// down, then re-arms itself from Update.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return transcriptMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// errorLine maps a terminal turn error to the status line shown under
// the transcript. Credit exhaustion gets its distinct upsell copy
// instead of a generic error line.
func errorLine(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, turn.ErrCreditsExhausted):
		return "You're out of message credits. Upgrade your plan to keep chatting."
	case errors.Is(err, turn.ErrEmptyMessage):
		return ""
	default:
		return "The response failed. Press ctrl+r to retry."
	}
}
