package sse

import (
	"errors"
	"fmt"
)

var (
	// ErrStalled is the cause of a stream cancelled by the stall timeout.
	ErrStalled = errors.New("no data received within stall timeout")

	// ErrPrematureClose means the server closed the stream before sending done.
	ErrPrematureClose = errors.New("stream closed before done event")
)

// ConnectionError reports a generation stream that could not be opened or
// was lost before its done event.
type ConnectionError struct {
	ReportID   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation stream for report %s failed with status %d: %v", e.ReportID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation stream for report %s failed: %v", e.ReportID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed frame. The session drops such frames and
// keeps reading.
type DecodeError struct {
	Frame  string
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	frame := e.Frame
	if len(frame) > 64 {
		frame = frame[:64] + "..."
	}
	return fmt.Sprintf("malformed SSE frame (%s): %q", e.Reason, frame)
}
