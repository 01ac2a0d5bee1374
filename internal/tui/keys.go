package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	Stop       key.Binding
	Retry      key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Stop:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Retry:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Stop, k.Retry, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Stop, k.Retry},
		{k.ScrollUp, k.ScrollDown, k.Quit},
	}
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c', 'd':
			return m, m.cleanup()
		case 'r':
			// Retry is a no-op unless the last assistant message is in
			// an error state; safe to issue unconditionally.
			if m.state == StateInput {
				m.errText = ""
				m.state = StateStreaming
				return m, tea.Batch(m.spinner.Tick, m.startRetry())
			}
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		// Send is disabled while a turn is streaming; the controller
		// enforces the same invariant.
		if m.state == StateInput && k.Mod&tea.ModShift == 0 {
			return m.handleSubmit()
		}

	case tea.KeyEscape:
		if m.state == StateStreaming {
			// Best-effort immediate cancel; the partial assistant
			// message is kept as-is.
			m.ctrl.Stop()
			return m, nil
		}

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.input.Reset()
	m.errText = ""
	m.state = StateStreaming

	return m, tea.Batch(m.spinner.Tick, m.startTurn(text))
}

// cleanup stops any active stream and quits.
func (m *Model) cleanup() tea.Cmd {
	m.ctrl.Stop()
	m.cancel()
	return tea.Quit
}
