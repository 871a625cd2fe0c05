package sse

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// EventKind classifies a decoded frame.
type EventKind int

const (
	// KindUnknown is a frame without an event line, such as a ": connected"
	// comment. Consumers ignore it.
	KindUnknown EventKind = iota

	// KindProgress is an informational event. Only the status detail changes.
	KindProgress

	// KindDone is the terminal event of a generation stream.
	KindDone
)

// DoneEvent is the event name that ends a generation stream.
const DoneEvent = "done"

// String returns the lowercase kind name used in logs and metric labels.
func (k EventKind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a decoded SSE frame.
type Event struct {
	// Kind is derived from Name.
	Kind EventKind

	// Name is the value of the first event: line.
	Name string

	// Data is the data: lines joined with "\n" and trimmed.
	Data string

	// ID is the value of the last id: line, if any.
	ID string
}

// Text returns a human-readable form of the payload. JSON string payloads
// are unquoted; anything else is returned as-is.
func (e Event) Text() string {
	if e.Data == "" {
		return ""
	}
	if gjson.Valid(e.Data) {
		if r := gjson.Parse(e.Data); r.Type == gjson.String {
			return r.String()
		}
	}
	return e.Data
}

// Decode parses one raw frame.
//
// A frame without an event: line decodes to KindUnknown with a nil error.
// Invalid UTF-8 and an event: line with an empty value are reported as
// *DecodeError.
//
// Parameters:
//   - frame: A frame as produced by FrameSplitter, without its delimiter
//
// Returns:
//   - Event: The decoded event
//   - error: *DecodeError when the frame is malformed
func Decode(frame string) (Event, error) {
	if !utf8.ValidString(frame) {
		return Event{}, &DecodeError{Frame: frame, Reason: "invalid UTF-8"}
	}

	var (
		ev       Event
		data     []string
		hasEvent bool
	)
	for _, line := range strings.Split(frame, "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			if hasEvent {
				continue
			}
			hasEvent = true
			ev.Name = strings.TrimSpace(value)
			if ev.Name == "" {
				return Event{}, &DecodeError{Frame: frame, Reason: "empty event name"}
			}
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = strings.TrimSpace(value)
		}
		// retry: and unknown fields are ignored
	}
	ev.Data = strings.TrimSpace(strings.Join(data, "\n"))

	switch {
	case !hasEvent:
		ev.Kind = KindUnknown
	case ev.Name == DoneEvent:
		ev.Kind = KindDone
	default:
		ev.Kind = KindProgress
	}
	return ev, nil
}
