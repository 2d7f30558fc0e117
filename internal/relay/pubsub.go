// Package relay carries encoded envelopes between instances over Redis pub/sub.
// Each instance subscribes to its own channel.
package relay

import (
	"context"
	"encoding/json"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Frame addresses one encoded envelope to the local sessions of UserID on
// the receiving instance.
type Frame struct {
	UserID   string          `json:"userId"`
	Envelope json.RawMessage `json:"envelope"`
}

type Relay struct {
	client     redis.UniversalClient
	instanceID string
}

func New(client redis.UniversalClient, instanceID string) *Relay {
	return &Relay{client: client, instanceID: instanceID}
}

func channel(id string) string {
	return "delivery:" + id
}

func (r *Relay) Publish(ctx context.Context, target string, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	observability.GetLogger(ctx).Debug("relay: publishing to instance", zap.String("target", target))
	return r.client.Publish(ctx, channel(target), payload).Err()
}

// Subscribe calls handler for every frame addressed to this instance, in
// arrival order, until ctx is done.
func (r *Relay) Subscribe(ctx context.Context, handler func(Frame)) {
	channelName := channel(r.instanceID)
	pubsub := r.client.Subscribe(ctx, channelName)

	go func() {
		log := observability.GetLogger(ctx)
		log.Info("relay: subscribed to channel", zap.String("channel", channelName))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("relay: subscription loop stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("relay: pubsub channel closed")
					return
				}
				var f Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					log.Error("relay: error decoding frame", zap.Error(err))
					continue
				}
				handler(f)
			}
		}
	}()
}
