// Package transcript reconstructs a conversation transcript from the
// chat data stream.
//
// Responsibilities: message/part data model, the per-turn reducer state
// machine, and per-call-id tool invocation tracking.
// Thread Safety: Transcript serializes access internally; the value
// types in this file are plain data.
package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role constants define valid message roles for type safety.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolState is the lifecycle state of a tool invocation.
type ToolState string

const (
	// ToolStatePartialCall means the call has been announced but its
	// arguments are not known yet.
	ToolStatePartialCall ToolState = "partial-call"

	// ToolStateCall means the call arguments are available and the tool
	// is executing.
	ToolStateCall ToolState = "call"

	// ToolStateResult is terminal: the tool produced output.
	ToolStateResult ToolState = "result"
)

// UnknownToolName is synthesized when an output event arrives for a
// call id that was never announced. Display must never silently lose a
// completed tool call.
const UnknownToolName = "unknown"

// ToolInvocation tracks a single tool call through its lifecycle. The
// ID is the only correlation key between tool-related stream events.
type ToolInvocation struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	State  ToolState       `json:"state"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Part is a typed fragment of a message's content. Insertion order in
// Message.Parts defines render order.
type Part interface {
	isPart()
}

// TextPart holds the message's free text. At most one per assistant
// message; streamed deltas extend it by concatenation.
type TextPart struct {
	Text string
}

func (*TextPart) isPart() {}

// ToolInvocationPart wraps a tool invocation. The invocation is shared
// with the reducer's tracker so later events for the same call id
// update it in place.
type ToolInvocationPart struct {
	ToolInvocation *ToolInvocation
}

func (*ToolInvocationPart) isPart() {}

// Message is one transcript entry.
type Message struct {
	ID      string
	Role    Role
	Content string // denormalized plain-text projection of the text part
	Parts   []Part

	// Annotations is opaque metadata attached mid-stream (citations
	// and the like). Last write wins, no merge.
	Annotations json.RawMessage

	// Errored marks an assistant message whose turn ended in an error.
	// Only errored messages are eligible for retry removal.
	Errored bool
}

// NewUserMessage creates a terminal user message with a client-assigned id.
func NewUserMessage(text string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
		Parts:   []Part{&TextPart{Text: text}},
	}
}

// NewAssistantMessage creates an empty assistant message with its text
// part pre-allocated, mutable until the turn ends.
func NewAssistantMessage() *Message {
	return &Message{
		ID:    uuid.NewString(),
		Role:  RoleAssistant,
		Parts: []Part{&TextPart{}},
	}
}

// textPart returns the message's text part, or nil if it has none.
func (m *Message) textPart() *TextPart {
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			return tp
		}
	}
	return nil
}

// Clone returns a deep copy, so snapshots handed to the UI stay
// consistent while the reducer keeps mutating the original mid-stream.
func (m *Message) Clone() *Message {
	c := *m
	c.Parts = make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		switch p := p.(type) {
		case *TextPart:
			tp := *p
			c.Parts[i] = &tp
		case *ToolInvocationPart:
			inv := *p.ToolInvocation
			c.Parts[i] = &ToolInvocationPart{ToolInvocation: &inv}
		}
	}
	if m.Annotations != nil {
		c.Annotations = append(json.RawMessage(nil), m.Annotations...)
	}
	return &c
}

// Part serialization envelope. The union is stored with a "type"
// discriminator so transcripts round-trip through persistence.
type partEnvelope struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

const (
	partTypeText           = "text"
	partTypeToolInvocation = "tool-invocation"
)

// messageJSON is the wire/persistence form of Message.
type messageJSON struct {
	ID          string          `json:"id"`
	Role        Role            `json:"role"`
	Content     string          `json:"content"`
	Parts       []partEnvelope  `json:"parts,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
	Errored     bool            `json:"errored,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	mj := messageJSON{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		Annotations: m.Annotations,
		Errored:     m.Errored,
	}
	for _, p := range m.Parts {
		switch p := p.(type) {
		case *TextPart:
			mj.Parts = append(mj.Parts, partEnvelope{Type: partTypeText, Text: p.Text})
		case *ToolInvocationPart:
			mj.Parts = append(mj.Parts, partEnvelope{Type: partTypeToolInvocation, ToolInvocation: p.ToolInvocation})
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}
	return json.Marshal(mj)
}

// UnmarshalJSON implements json.Unmarshaler. Parts with an unknown
// discriminator are skipped rather than failing the whole message, so
// transcripts written by newer clients still load.
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	m.ID = mj.ID
	m.Role = mj.Role
	m.Content = mj.Content
	m.Annotations = mj.Annotations
	m.Errored = mj.Errored
	m.Parts = nil
	for _, env := range mj.Parts {
		switch env.Type {
		case partTypeText:
			m.Parts = append(m.Parts, &TextPart{Text: env.Text})
		case partTypeToolInvocation:
			if env.ToolInvocation != nil {
				m.Parts = append(m.Parts, &ToolInvocationPart{ToolInvocation: env.ToolInvocation})
			}
		}
	}
	return nil
}
