package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// splitAll feeds chunks in order and flushes at the end.
func splitAll(chunks ...string) []string {
	s := NewFrameSplitter()
	var frames []string
	for _, c := range chunks {
		frames = append(frames, s.Feed([]byte(c))...)
	}
	if rest, ok := s.Flush(); ok {
		frames = append(frames, rest)
	}
	return frames
}

func TestFrameSplitterFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{"single frame", []string{"event: done\ndata: \n\n"}, []string{"event: done\ndata: "}},
		{"two frames one chunk", []string{"event: a\n\nevent: b\n\n"}, []string{"event: a", "event: b"}},
		{"delimiter straddles chunks", []string{"event: a\n", "\nevent: b\n\n"}, []string{"event: a", "event: b"}},
		{"partial kept until complete", []string{"eve", "nt: a", "\n\n"}, []string{"event: a"}},
		{"crlf", []string{"event: a\r\n\r\nevent: b\r\n\r\n"}, []string{"event: a", "event: b"}},
		{"crlf straddles chunks", []string{"event: a\r", "\n\r", "\n"}, []string{"event: a"}},
		{"bare cr", []string{"event: a\r\r"}, []string{"event: a"}},
		{"trailing text flushed", []string{"event: a\n\nevent: b\ndata: x"}, []string{"event: a", "event: b\ndata: x"}},
		{"blank remainder dropped", []string{"event: a\n\n\n"}, []string{"event: a"}},
		{"comment frame", []string{": connected\n\n"}, []string{": connected"}},
		{"empty input", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitAll(tt.chunks...))
		})
	}
}

func TestFrameSplitterChunkingInvariance(t *testing.T) {
	stream := ": connected\r\n\r\n" +
		"event: current_type\ndata: \"Analyzing schema\"\n\n" +
		"event: current_type\r\ndata: \"Writing query\"\r\n\r\n" +
		"event: response_completed\ndata: {\"rows\": 2}\n\n" +
		"event: done\ndata: \n\n"

	want := splitAll(stream)
	assert.Len(t, want, 5)

	// Every two-way split.
	for i := 0; i <= len(stream); i++ {
		got := splitAll(stream[:i], stream[i:])
		assert.Equal(t, want, got, "split at %d", i)
	}

	// Byte at a time.
	chunks := make([]string, len(stream))
	for i := range stream {
		chunks[i] = stream[i : i+1]
	}
	assert.Equal(t, want, splitAll(chunks...))
}

func TestFrameSplitterReset(t *testing.T) {
	s := NewFrameSplitter()
	assert.Empty(t, s.Feed([]byte("event: a\r")))
	assert.Positive(t, s.Buffered())

	s.Reset()
	assert.Zero(t, s.Buffered())

	_, ok := s.Flush()
	assert.False(t, ok)
	assert.Equal(t, []string{"event: b"}, s.Feed([]byte("event: b\n\n")))
}
