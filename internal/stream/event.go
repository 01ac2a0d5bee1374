// Package stream decodes the chat completion data stream.
//
// The chat endpoint responds with line-delimited frames in SSE form:
//
//	data: {"type":"text-delta","delta":"Hel"}
//	data: {"type":"tool-input-start","toolCallId":"t1","toolName":"getWeather"}
//	data: [DONE]
//
// Each frame carries a JSON object with a "type" discriminator; the
// "[DONE]" sentinel terminates the stream. A top-level object with only
// an "error" member (no discriminator) is a terminal stream error.
package stream

import "encoding/json"

// EventType discriminates decoded stream events.
type EventType string

// Event types understood by the transcript reducer. Any other value is
// passed through unmodified for forward compatibility; the reducer
// ignores types it does not know.
const (
	EventStart               EventType = "start"
	EventStartStep           EventType = "start-step"
	EventTextStart           EventType = "text-start"
	EventTextDelta           EventType = "text-delta"
	EventTextEnd             EventType = "text-end"
	EventToolInputStart      EventType = "tool-input-start"
	EventToolInputAvailable  EventType = "tool-input-available"
	EventToolOutputAvailable EventType = "tool-output-available"
	EventMessageMetadata     EventType = "message-metadata"
	EventFinishStep          EventType = "finish-step"
	EventFinish              EventType = "finish"

	// EventError is synthesized for frames that carry a top-level
	// "error" member without a "type" discriminator. Typed frames keep
	// their own discriminator even when an "error" field is present.
	EventError EventType = "error"
)

// Event is one decoded frame of the data stream. Which fields are
// populated depends on Type; unknown fields in the frame are dropped by
// the JSON decoder.
type Event struct {
	Type EventType `json:"type"`

	// text-delta
	Delta string `json:"delta,omitempty"`

	// tool-input-start / tool-input-available / tool-output-available
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`

	// message-metadata
	MessageMetadata json.RawMessage `json:"messageMetadata,omitempty"`

	// error frames
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the current turn.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}
