package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/parley-chat/parley/internal/transcript"
)

// View implements tea.Model.
// Uses AltScreen with a viewport for scrollable transcript history.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")
	_, _ = m.viewBuf.WriteString(m.help.View(m.keys))

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport from a transcript
// snapshot. The snapshot is deep-copied by the reducer, so rendering
// never races with an in-flight stream.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	for _, msg := range m.ctrl.Transcript().Messages() {
		switch msg.Role {
		case transcript.RoleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
			_, _ = b.WriteString("\n\n")
		case transcript.RoleAssistant:
			m.renderAssistant(&b, msg)
		}
	}

	if m.state == StateStreaming {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(m.styles.Tool.Render(" streaming... press esc to stop"))
		_, _ = b.WriteString("\n")
	}
	if m.errText != "" {
		_, _ = b.WriteString(m.styles.Error.Render(m.errText))
		_, _ = b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// renderAssistant writes one assistant message: parts in insertion
// order, text inline, tool invocations as status lines.
func (m *Model) renderAssistant(b *strings.Builder, msg *transcript.Message) {
	if msg.Errored {
		_, _ = b.WriteString(m.styles.Error.Render("Error: " + msg.Content))
		_, _ = b.WriteString("\n\n")
		return
	}

	_, _ = b.WriteString(m.styles.Assistant.Render("Parley> "))
	if len(msg.Parts) == 0 {
		// Denormalized-content-only message (older history).
		_, _ = b.WriteString(msg.Content)
	}
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case *transcript.TextPart:
			_, _ = b.WriteString(p.Text)
		case *transcript.ToolInvocationPart:
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(m.styles.Tool.Render(toolLine(p.ToolInvocation)))
		}
	}
	_, _ = b.WriteString("\n\n")
}

// toolLine summarizes a tool invocation's lifecycle state for display.
func toolLine(inv *transcript.ToolInvocation) string {
	switch {
	case inv.Error != "":
		return "⚙ " + inv.Name + " failed: " + inv.Error
	case inv.State == transcript.ToolStateResult:
		return "⚙ " + inv.Name + " done"
	case inv.State == transcript.ToolStateCall:
		return "⚙ " + inv.Name + " running..."
	default:
		return "⚙ " + inv.Name + " starting..."
	}
}
