package relay

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_PublishSubscribe(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := "inst-" + uuid.NewString()
	frames := make(chan Frame, 4)
	New(client, target).Subscribe(ctx, func(f Frame) { frames <- f })

	sender := New(client, "other")
	want := Frame{UserID: "B", Envelope: json.RawMessage(`{"type":"new_message"}`)}

	// The subscription is established asynchronously; publish until it lands.
	require.Eventually(t, func() bool {
		if err := sender.Publish(ctx, target, want); err != nil {
			return false
		}
		select {
		case got := <-frames:
			assert.Equal(t, want.UserID, got.UserID)
			assert.JSONEq(t, string(want.Envelope), string(got.Envelope))
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
