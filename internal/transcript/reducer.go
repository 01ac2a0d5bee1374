package transcript

import (
	"strings"
	"sync"

	"github.com/parley-chat/parley/internal/stream"
)

// FallbackErrorMessage replaces the assistant message content when the
// stream reports an error without usable text.
const FallbackErrorMessage = "Something went wrong. Please try again."

// Transcript is the in-memory conversation state: the ordered message
// list plus the reducer state scoped to the turn currently streaming.
//
// Events for distinct tool call ids and the text channel may be freely
// interleaved by the server; tool invocations are addressed purely by
// id and text is a single append-only accumulator, so arrival order
// across channels never affects the final transcript.
//
// Transcript is safe for concurrent use. Callers that drive Apply must
// still serialize turns: exactly one turn may be active at a time.
type Transcript struct {
	mu       sync.RWMutex
	messages []*Message

	// Per-turn reducer state, reset by BeginTurn.
	assistant *Message
	textBuf   strings.Builder
	pending   map[string]*ToolInvocation
	failed    bool

	subscribers []func()
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Subscribe registers an observer invoked by Notify. The reducer itself
// never calls observers; the driving layer notifies after each applied
// event so the UI re-renders on a consistent snapshot.
func (t *Transcript) Subscribe(fn func()) {
	t.mu.Lock()
	t.subscribers = append(t.subscribers, fn)
	t.mu.Unlock()
}

// Notify invokes all subscribed observers.
func (t *Transcript) Notify() {
	t.mu.RLock()
	subs := make([]func(), len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Messages returns a deep-copied snapshot of the transcript.
func (t *Transcript) Messages() []*Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// SetMessages replaces the transcript with loaded history. Makes
// defensive copies so the caller cannot mutate reducer state.
func (t *Transcript) SetMessages(messages []*Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = make([]*Message, len(messages))
	for i, m := range messages {
		t.messages[i] = m.Clone()
	}
}

// AppendUser appends a terminal user message.
func (t *Transcript) AppendUser(text string) *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := NewUserMessage(text)
	t.messages = append(t.messages, msg)
	return msg
}

// BeginTurn appends an empty mutable assistant message and resets the
// per-turn reducer state.
func (t *Transcript) BeginTurn() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assistant = NewAssistantMessage()
	t.textBuf.Reset()
	t.pending = make(map[string]*ToolInvocation)
	t.failed = false
	t.messages = append(t.messages, t.assistant)
	return t.assistant
}

// EndTurn finalizes the active assistant message. The message keeps
// whatever state it reached; cancellation is not a rollback.
func (t *Transcript) EndTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assistant = nil
	t.pending = nil
}

// Active reports whether a turn is currently streaming.
func (t *Transcript) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.assistant != nil
}

// Apply advances the transcript by one decoded event. Events outside an
// active turn, events after a terminal error, and event types the
// reducer does not know are consumed without effect.
func (t *Transcript) Apply(ev stream.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.assistant == nil || t.failed {
		return
	}

	switch ev.Type {
	case stream.EventTextDelta:
		t.textBuf.WriteString(ev.Delta)
		full := t.textBuf.String()
		tp := t.assistant.textPart()
		if tp == nil {
			tp = &TextPart{}
			t.assistant.Parts = append(t.assistant.Parts, tp)
		}
		// The UI always sees the complete accumulated text, never a
		// diff to apply itself.
		tp.Text = full
		t.assistant.Content = full

	case stream.EventToolInputStart:
		inv := t.ensureInvocation(ev.ToolCallID, ev.ToolName)
		if ev.ToolName != "" {
			inv.Name = ev.ToolName
		}

	case stream.EventToolInputAvailable:
		inv := t.ensureInvocation(ev.ToolCallID, ev.ToolName)
		if ev.ToolName != "" {
			inv.Name = ev.ToolName
		}
		inv.Input = ev.Input
		inv.State = ToolStateCall

	case stream.EventToolOutputAvailable:
		// Name and input carry over from the tracked entry; the output
		// event does not repeat them. An id never seen before still
		// produces a visible invocation.
		inv := t.ensureInvocation(ev.ToolCallID, UnknownToolName)
		inv.Output = ev.Output
		inv.State = ToolStateResult

	case stream.EventMessageMetadata:
		if ev.MessageMetadata != nil {
			t.assistant.Annotations = ev.MessageMetadata
		}

	case stream.EventError:
		if ev.ToolCallID != "" {
			// Error scoped to one invocation: terminal error sub-state
			// for that call, the turn itself continues.
			inv := t.ensureInvocation(ev.ToolCallID, UnknownToolName)
			inv.Error = ev.Error
			return
		}
		t.failLocked(ev.Error)

	case stream.EventStart, stream.EventStartStep, stream.EventTextStart,
		stream.EventTextEnd, stream.EventFinishStep, stream.EventFinish:
		// Structural lifecycle events: accepted, no reducer effect.

	default:
		// Unknown event kind, forward compatibility: ignore.
	}
}

// Fail marks the active assistant message as errored and stops further
// mutation. The message content is overwritten with a user-facing
// error string; previously finalized messages are never touched.
func (t *Transcript) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.assistant == nil || t.failed {
		return
	}
	t.failLocked(message)
}

func (t *Transcript) failLocked(message string) {
	if message == "" {
		message = FallbackErrorMessage
	}
	t.assistant.Content = message
	t.assistant.Errored = true
	t.failed = true
}

// ensureInvocation returns the tracked invocation for id, creating it
// (and its part in the assistant message) on the fly. Exactly one
// invocation exists per call id; later events update it in place.
func (t *Transcript) ensureInvocation(id, name string) *ToolInvocation {
	if inv, ok := t.pending[id]; ok {
		return inv
	}
	inv := &ToolInvocation{
		ID:    id,
		Name:  name,
		State: ToolStatePartialCall,
	}
	t.pending[id] = inv
	t.assistant.Parts = append(t.assistant.Parts, &ToolInvocationPart{ToolInvocation: inv})
	return inv
}

// LastAssistantErrored reports whether the last message is an assistant
// message that ended in an error.
func (t *Transcript) LastAssistantErrored() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastAssistantErroredLocked()
}

func (t *Transcript) lastAssistantErroredLocked() bool {
	if len(t.messages) == 0 {
		return false
	}
	last := t.messages[len(t.messages)-1]
	return last.Role == RoleAssistant && last.Errored
}

// RemoveLastAssistantIfErrored removes exactly the last message when it
// is an errored assistant message. This is the only operation that ever
// removes a message from the transcript.
func (t *Transcript) RemoveLastAssistantIfErrored() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastAssistantErroredLocked() {
		return false
	}
	t.messages = t.messages[:len(t.messages)-1]
	return true
}

// LastUserText returns the text of the most recent user message.
func (t *Transcript) LastUserText() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleUser {
			return t.messages[i].Content, true
		}
	}
	return "", false
}
