package sse

import (
	"bytes"
	"strings"
)

var frameDelimiter = []byte("\n\n")

// FrameSplitter cuts a chunked text/event-stream body into raw frames.
//
// Frames are only emitted once their full "\n\n" delimiter has been seen, so
// the sequence of frames produced by Feed and Flush depends on the bytes of
// the stream and never on how they were chunked. CRLF and bare CR line endings
// are normalized to LF, including a CR/LF pair split across two chunks.
//
// A FrameSplitter is not safe for concurrent use.
type FrameSplitter struct {
	buf       []byte
	pendingCR bool
}

// NewFrameSplitter returns an empty splitter.
func NewFrameSplitter() *FrameSplitter {
	return &FrameSplitter{}
}

// Feed appends chunk to the pending buffer and returns every frame completed
// by it, in stream order. Incomplete trailing text stays buffered.
//
// Parameters:
//   - chunk: Raw bytes as read from the response body
//
// Returns:
//   - []string: Zero or more complete frames, without their delimiter
func (s *FrameSplitter) Feed(chunk []byte) []string {
	s.appendNormalized(chunk)

	var frames []string
	for {
		i := bytes.Index(s.buf, frameDelimiter)
		if i < 0 {
			break
		}
		frames = append(frames, string(s.buf[:i]))
		s.buf = s.buf[i+len(frameDelimiter):]
	}

	// Compact so a long stream does not pin every consumed byte.
	if len(s.buf) == 0 {
		s.buf = s.buf[:0:0]
	} else if cap(s.buf) > 4096 && len(s.buf) < cap(s.buf)/4 {
		s.buf = append([]byte(nil), s.buf...)
	}
	return frames
}

// Flush returns the buffered trailing text when the stream ends without a
// final delimiter, and resets the splitter. Blank remainders are dropped.
func (s *FrameSplitter) Flush() (string, bool) {
	if s.pendingCR {
		s.buf = append(s.buf, '\n')
	}
	rest := string(s.buf)
	s.Reset()

	rest = strings.TrimRight(rest, "\n")
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}

// Reset discards any buffered input.
func (s *FrameSplitter) Reset() {
	s.buf = nil
	s.pendingCR = false
}

// Buffered reports the number of bytes waiting for a delimiter.
func (s *FrameSplitter) Buffered() int {
	return len(s.buf)
}

func (s *FrameSplitter) appendNormalized(chunk []byte) {
	for _, b := range chunk {
		if s.pendingCR {
			s.pendingCR = false
			s.buf = append(s.buf, '\n')
			if b == '\n' {
				continue
			}
		}
		if b == '\r' {
			s.pendingCR = true
			continue
		}
		s.buf = append(s.buf, b)
	}
}
