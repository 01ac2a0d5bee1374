// Package tui provides the Bubble Tea terminal interface for Parley.
//
// The TUI is the host UI for the turn controller: it disables the send
// affordance while a turn is streaming, re-renders on every transcript
// notification, and maps stop/retry keys onto the controller's
// operations.
package tui

import (
	"context"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"github.com/parley-chat/parley/internal/turn"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput     State = iota // Awaiting user input
	StateStreaming              // A turn is active
)

// updateBufferSize bounds the transcript notification channel. Observer
// sends are best-effort; a full channel just coalesces re-renders.
const updateBufferSize = 16

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Above and below input
	helpLines      = 1 // Help bar height
	minViewport    = 3 // Minimum viewport height
)

// Model is the Bubble Tea model for the Parley chat interface.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	ctrl *turn.Controller

	// Input
	input textarea.Model

	// Output
	viewport viewport.Model
	spinner  spinner.Model
	viewBuf  strings.Builder

	// Help bar
	help help.Model
	keys keyMap

	styles Styles

	state   State
	width   int
	height  int
	updates chan struct{}
	errText string
}

// New creates the TUI over a configured controller.
func New(ctx context.Context, ctrl *turn.Controller) *Model {
	ctx, cancel := context.WithCancel(ctx)

	input := textarea.New()
	input.Placeholder = "Ask anything..."
	input.SetHeight(1)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:      ctx,
		cancel:   cancel,
		ctrl:     ctrl,
		input:    input,
		viewport: viewport.New(),
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		styles:   DefaultStyles(),
		updates:  make(chan struct{}, updateBufferSize),
	}

	// Best-effort notification: the channel coalesces bursts, the
	// Bubble Tea loop pulls a consistent snapshot per render.
	ctrl.Transcript().Subscribe(func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})

	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForUpdate())
}

// Run starts the Bubble Tea program and blocks until exit.
func Run(ctx context.Context, ctrl *turn.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl))
	_, err := p.Run()
	return err
}
