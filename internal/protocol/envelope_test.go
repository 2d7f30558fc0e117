package protocol

import (
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_WireShapes(t *testing.T) {
	env, err := Decode([]byte(`{"type":"auth","userId":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAuth, env.Type)
	assert.Equal(t, "A", env.UserID)

	env, err = Decode([]byte(`{"type":"send_message","receiverId":"B","content":"Bonjour","listingId":"L1"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSendMessage, env.Type)
	assert.Equal(t, "B", env.ReceiverID)
	assert.Equal(t, "Bonjour", env.Content)
	assert.Equal(t, "L1", env.ListingID)

	env, err = Decode([]byte(`{"type":"new_message","message":{"id":"m1","senderId":"A","receiverId":"B","content":"x","createdAt":"2024-01-02T03:04:05Z"}}`))
	require.NoError(t, err)
	require.NotNil(t, env.Message)
	assert.Equal(t, "m1", env.Message.ID)
	assert.Equal(t, 2024, env.Message.CreatedAt.Year())
}

func TestDecode_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{`, ErrMalformed},
		{"missing type", `{"userId":"A"}`, ErrMalformed},
		{"unknown type", `{"type":"typing","userId":"A"}`, ErrUnknownType},
		{"auth without user", `{"type":"auth"}`, ErrMalformed},
		{"send without receiver", `{"type":"send_message","content":"x"}`, ErrMalformed},
		{"push without message", `{"type":"new_message"}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncode_MessageSent(t *testing.T) {
	msg := &domain.Message{ID: "m1", SenderID: "A", ReceiverID: "B", Content: "hi", CreatedAt: time.Unix(0, 0).UTC()}
	raw, err := Encode(MessageSent(msg, "c1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_sent","clientMsgId":"c1","message":{"id":"m1","senderId":"A","receiverId":"B","content":"hi","createdAt":"1970-01-01T00:00:00Z"}}`, string(raw))
}
