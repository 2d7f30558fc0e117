package websocket

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"go.uber.org/zap"
)

var heartbeatInterval = 20 * time.Second

func StartHeartbeat(p Presence, userID, sessionID string, done <-chan struct{}) {
	interval := heartbeatInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		ctx := context.Background()

		for {
			select {
			case <-ticker.C:
				if err := p.Refresh(ctx, userID, sessionID); err != nil {
					observability.GetLogger(ctx).Warn("presence: refresh failed",
						zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()
}
