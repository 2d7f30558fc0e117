package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/conversation"
	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://localhost:8083/ws", "http://localhost:8083", false},
		{"wss://chat.example.com/ws", "https://chat.example.com", false},
		{"http://localhost:8083", "http://localhost:8083", false},
		{"ftp://localhost", "", true},
		{"ws:///ws", "", true},
	}
	for _, tt := range tests {
		got, err := historyBaseURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrinter_ShowsEachMessageOnce(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, conversation.Scope{Self: "A", Peer: "B"})

	m := domain.Message{ID: "m1", SenderID: "B", ReceiverID: "A", Content: "Bonjour", CreatedAt: time.Now()}
	p.message(m)
	p.message(m)
	p.message(domain.Message{ID: "m2", SenderID: "C", ReceiverID: "A", Content: "elsewhere", CreatedAt: time.Now()})
	p.message(domain.Message{ID: "m3", SenderID: "A", ReceiverID: "B", Content: "Salut", CreatedAt: time.Now()})

	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Bonjour")))
	assert.NotContains(t, out, "elsewhere")
	assert.Contains(t, out, "you: Salut")
	assert.Contains(t, out, "B: Bonjour")
}
