package dispatch

import (
	"bytes"
	"strings"
)

// streamTerminator is the explicit end-of-stream marker in event payloads.
const streamTerminator = "[DONE]"

// Event is one decoded record from a line-oriented event stream: either a
// data payload fragment or the explicit terminator.
type Event struct {
	// Data is the payload fragment. Empty when Done is true.
	Data string

	// Done is true when the event is the end-of-stream marker.
	Done bool
}

// ChunkDecoder incrementally decodes a line-oriented event stream arriving
// as arbitrary byte ranges. Chunks never have to end on a line boundary:
// partial lines are buffered across Feed calls. Non-data lines (comments,
// event names, blank keep-alives) are ignored.
//
// The zero value is ready to use.
type ChunkDecoder struct {
	buf bytes.Buffer
}

// Feed consumes the next transport chunk and returns the events completed
// by it, in arrival order. Decoding stops at the terminator; anything fed
// after it is ignored by the caller terminating its read loop.
func (d *ChunkDecoder) Feed(p []byte) []Event {
	d.buf.Write(p)

	var events []Event
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}

		line := string(raw[:idx])
		d.buf.Next(idx + 1)

		if event, ok := decodeLine(line); ok {
			events = append(events, event)
		}
	}

	return events
}

// Finish flushes any trailing unterminated line after the stream closes.
// It returns the decoded event and true when the remainder was a data line.
func (d *ChunkDecoder) Finish() (Event, bool) {
	line := d.buf.String()
	d.buf.Reset()

	if line == "" {
		return Event{}, false
	}

	return decodeLine(line)
}

// decodeLine parses one complete line. Only "data:" lines produce events.
func decodeLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")

	if !strings.HasPrefix(line, "data:") {
		return Event{}, false
	}

	payload := strings.TrimPrefix(line, "data:")
	payload = strings.TrimPrefix(payload, " ")

	if payload == streamTerminator {
		return Event{Done: true}, true
	}

	return Event{Data: payload}, true
}
