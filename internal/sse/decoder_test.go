package sse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "progress with json string",
			frame: "event: current_type\ndata: \"Analyzing schema\"",
			want:  Event{Kind: KindProgress, Name: "current_type", Data: `"Analyzing schema"`},
		},
		{
			name:  "done with empty data",
			frame: "event: done\ndata: ",
			want:  Event{Kind: KindDone, Name: "done"},
		},
		{
			name:  "comment only",
			frame: ": connected",
			want:  Event{Kind: KindUnknown},
		},
		{
			name:  "data without event",
			frame: "data: hello",
			want:  Event{Kind: KindUnknown, Data: "hello"},
		},
		{
			name:  "first event line wins",
			frame: "event: current_type\nevent: done",
			want:  Event{Kind: KindProgress, Name: "current_type"},
		},
		{
			name:  "multi-line data joined",
			frame: "event: response_completed\ndata: {\"a\":\ndata: 1}",
			want:  Event{Kind: KindProgress, Name: "response_completed", Data: "{\"a\":\n1}"},
		},
		{
			name:  "id and retry",
			frame: "id: 7\nretry: 1000\nevent: done",
			want:  Event{Kind: KindDone, Name: "done", ID: "7"},
		},
		{
			name:  "no space after colon",
			frame: "event:done\ndata:x",
			want:  Event{Kind: KindDone, Name: "done", Data: "x"},
		},
		{
			name:  "empty frame",
			frame: "",
			want:  Event{Kind: KindUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		reason string
	}{
		{"empty event name", "event: \ndata: x", "empty event name"},
		{"invalid utf8", "event: current_type\ndata: \xff\xfe", "invalid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.reason, decErr.Reason)
			assert.Contains(t, err.Error(), "malformed SSE frame")
		})
	}
}

func TestEventText(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`"Writing query"`, "Writing query"},
		{`{"rows":2}`, `{"rows":2}`},
		{"plain text", "plain text"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			if got := (Event{Data: tt.data}).Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "progress", KindProgress.String())
	assert.Equal(t, "done", KindDone.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
