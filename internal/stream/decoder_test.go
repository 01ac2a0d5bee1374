package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/testutil"
)

func TestDecoder_Feed(t *testing.T) {
	t.Run("decodes complete frames", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"text-delta\",\"delta\":\"Hel\"}\ndata: {\"type\":\"text-delta\",\"delta\":\"lo\"}\n"))

		require.Len(t, events, 2)
		assert.Equal(t, EventTextDelta, events[0].Type)
		assert.Equal(t, "Hel", events[0].Delta)
		assert.Equal(t, "lo", events[1].Delta)
	})

	t.Run("reassembles frames split across chunks", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"text-del"))
		assert.Empty(t, events)

		events = d.Feed([]byte("ta\",\"delta\":\"Hello\"}\n"))
		require.Len(t, events, 1)
		assert.Equal(t, EventTextDelta, events[0].Type)
		assert.Equal(t, "Hello", events[0].Delta)
	})

	t.Run("handles crlf line endings", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"finish\"}\r\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventFinish, events[0].Type)
	})

	t.Run("done sentinel terminates the stream", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"finish\"}\ndata: [DONE]\ndata: {\"type\":\"text-delta\",\"delta\":\"late\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventFinish, events[0].Type)
		assert.True(t, d.Done())

		// Anything fed after the sentinel is discarded.
		assert.Empty(t, d.Feed([]byte("data: {\"type\":\"text-delta\",\"delta\":\"more\"}\n")))
	})

	t.Run("drops malformed frames without terminating", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {not json}\ndata: {\"type\":\"text-delta\",\"delta\":\"ok\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, "ok", events[0].Delta)
		assert.False(t, d.Done())
	})

	t.Run("drops frames without a discriminator", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"delta\":\"orphan\"}\n"))

		assert.Empty(t, events)
	})

	t.Run("synthesizes error event from error member", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"error\":\"credits exhausted\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Type)
		assert.Equal(t, "credits exhausted", events[0].Error)
	})

	t.Run("typed frame keeps its discriminator despite an error field", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"tool-output-available\",\"toolCallId\":\"c1\",\"error\":\"partial failure\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventToolOutputAvailable, events[0].Type)
		assert.Equal(t, "partial failure", events[0].Error)
	})

	t.Run("skips non-data lines", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte(": keep-alive\nevent: message\n\ndata: {\"type\":\"start\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventStart, events[0].Type)
	})

	t.Run("passes unknown event types through", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte("data: {\"type\":\"reasoning-delta\",\"delta\":\"hmm\"}\n"))

		require.Len(t, events, 1)
		assert.Equal(t, EventType("reasoning-delta"), events[0].Type)
	})

	t.Run("decodes tool frames", func(t *testing.T) {
		d := NewDecoder(testutil.DiscardLogger())

		events := d.Feed([]byte(testutil.Frame(t, map[string]any{
			"type":       "tool-input-available",
			"toolCallId": "call-1",
			"toolName":   "getWeather",
			"input":      map[string]any{"city": "Boston"},
		})))

		require.Len(t, events, 1)
		assert.Equal(t, EventToolInputAvailable, events[0].Type)
		assert.Equal(t, "call-1", events[0].ToolCallID)
		assert.Equal(t, "getWeather", events[0].ToolName)
		assert.JSONEq(t, `{"city":"Boston"}`, string(events[0].Input))
	})
}

func TestEvents(t *testing.T) {
	t.Run("yields events until done sentinel", func(t *testing.T) {
		body := "data: {\"type\":\"text-delta\",\"delta\":\"Hel\"}\n" +
			"data: {\"type\":\"text-delta\",\"delta\":\"lo\"}\n" +
			"data: {\"type\":\"finish\"}\n" +
			testutil.DoneFrame

		var events []Event
		for ev, err := range Events(strings.NewReader(body), testutil.DiscardLogger()) {
			require.NoError(t, err)
			events = append(events, ev)
		}

		require.Len(t, events, 3)
		assert.Equal(t, EventFinish, events[2].Type)
	})

	t.Run("ends at reader exhaustion without sentinel", func(t *testing.T) {
		body := "data: {\"type\":\"text-delta\",\"delta\":\"partial\"}\n"

		var events []Event
		for ev, err := range Events(strings.NewReader(body), testutil.DiscardLogger()) {
			require.NoError(t, err)
			events = append(events, ev)
		}

		require.Len(t, events, 1)
	})

	t.Run("yields read failure as final element", func(t *testing.T) {
		readErr := errors.New("connection reset")
		r := io.MultiReader(
			strings.NewReader("data: {\"type\":\"start\"}\n"),
			&failingReader{err: readErr},
		)

		var events []Event
		var finalErr error
		for ev, err := range Events(r, testutil.DiscardLogger()) {
			if err != nil {
				finalErr = err
				continue
			}
			events = append(events, ev)
		}

		require.Len(t, events, 1)
		assert.ErrorIs(t, finalErr, readErr)
	})

	t.Run("stops when the consumer breaks", func(t *testing.T) {
		body := "data: {\"type\":\"text-delta\",\"delta\":\"a\"}\n" +
			"data: {\"type\":\"text-delta\",\"delta\":\"b\"}\n"

		count := 0
		for range Events(strings.NewReader(body), testutil.DiscardLogger()) {
			count++
			break
		}

		assert.Equal(t, 1, count)
	})
}

func TestEvent_Terminal(t *testing.T) {
	assert.True(t, Event{Type: EventFinish}.Terminal())
	assert.True(t, Event{Type: EventError}.Terminal())
	assert.False(t, Event{Type: EventTextDelta}.Terminal())
	assert.False(t, Event{Type: EventStart}.Terminal())
}

// failingReader fails every read with a fixed error.
type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
