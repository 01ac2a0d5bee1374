package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"strings"
)

const (
	// dataPrefix marks a payload-bearing frame line.
	dataPrefix = "data: "

	// doneSentinel terminates the stream without producing an event.
	doneSentinel = "[DONE]"

	// readChunkSize is the transport read granularity for Events.
	readChunkSize = 4096
)

// Decoder assembles raw transport chunks into decoded events.
//
// Chunks may split frames at arbitrary byte boundaries; the decoder
// keeps the trailing partial line in a carry-over buffer and only
// decodes complete lines. Malformed frame payloads are dropped
// silently - truncated frames are expected at chunk boundaries and must
// not terminate the stream.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	buf    bytes.Buffer
	done   bool
	logger *slog.Logger
}

// NewDecoder creates a decoder. A nil logger falls back to slog.Default.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Feed appends a raw chunk and returns all events completed by it.
// After the done sentinel has been seen, Feed discards input and
// returns nil.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done {
		return nil
	}
	d.buf.Write(chunk)

	var events []Event
	for {
		line, ok := d.nextLine()
		if !ok {
			break
		}
		ev, ok := d.decodeLine(line)
		if d.done {
			break
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

// Done reports whether the done sentinel has been received.
func (d *Decoder) Done() bool {
	return d.done
}

// nextLine extracts one complete line from the buffer. Returns false
// when no full line is buffered yet; the partial tail is carried over.
func (d *Decoder) nextLine() (string, bool) {
	data := d.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(data[:idx])
	d.buf.Next(idx + 1)
	return strings.TrimSuffix(line, "\r"), true
}

// decodeLine decodes a single frame line. Lines without the data prefix
// (blank separators, "event:" names, ":" comments) carry no payload and
// are skipped.
func (d *Decoder) decodeLine(line string) (Event, bool) {
	payload, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return Event{}, false
	}
	if strings.TrimSpace(payload) == doneSentinel {
		d.done = true
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		// Deliberate fault tolerance: a frame that fails structural
		// decoding never corrupts or terminates the stream.
		d.logger.Debug("dropping malformed frame", "error", err)
		return Event{}, false
	}

	// A frame with an error member and no discriminator is a terminal
	// stream error. A typed frame keeps its discriminator even when it
	// carries an error field.
	if ev.Type == "" {
		if ev.Error == "" {
			d.logger.Debug("dropping frame without discriminator")
			return Event{}, false
		}
		ev.Type = EventError
	}
	return ev, true
}

// Events returns a lazy, finite, non-restartable sequence of decoded
// events read from r. The sequence ends when the done sentinel arrives,
// r is exhausted, or r fails; a non-EOF read failure is yielded as the
// final element so the caller can distinguish an aborted stream from a
// natural end.
func Events(r io.Reader, logger *slog.Logger) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		d := NewDecoder(logger)
		chunk := make([]byte, readChunkSize)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				for _, ev := range d.Feed(chunk[:n]) {
					if !yield(ev, nil) {
						return
					}
				}
			}
			if d.done {
				return
			}
			if err != nil {
				if err != io.EOF {
					yield(Event{}, err)
				}
				return
			}
		}
	}
}
