// Package testutil provides shared test helpers for the Parley client.
package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Frame encodes v as JSON and wraps it in a line-prefixed stream frame.
//
// Example:
//
//	testutil.Frame(t, map[string]any{"type": "text-delta", "delta": "Hi"})
//	// => "data: {\"delta\":\"Hi\",\"type\":\"text-delta\"}\n"
func Frame(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal frame payload: %v", err)
	}
	return "data: " + string(data) + "\n"
}

// RawFrame wraps an already-encoded payload in a stream frame. Useful for
// feeding deliberately malformed JSON through the decoder.
func RawFrame(payload string) string {
	return "data: " + payload + "\n"
}

// DoneFrame is the frame that terminates a stream.
const DoneFrame = "data: [DONE]\n"

// StreamServer starts an httptest server that answers every request by
// writing the given frames one at a time, flushing between writes so the
// client observes them as separate chunks. The server is shut down when
// the test ends.
func StreamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(StreamHandler(t, frames...))
	t.Cleanup(srv.Close)
	return srv
}

// StreamHandler returns a handler that streams the given frames with a
// flush after each one.
func StreamHandler(t *testing.T, frames ...string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}
		for _, frame := range frames {
			if _, err := io.WriteString(w, frame); err != nil {
				return // client went away
			}
			flusher.Flush()
		}
	}
}

// DiscardLogger returns a logger that drops everything. Use it wherever a
// component requires a logger but the test does not assert on log output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
