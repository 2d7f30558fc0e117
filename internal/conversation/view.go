package conversation

import (
	"context"
	"sync"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
)

type HistoryFetcher interface {
	Fetch(ctx context.Context, scope Scope) ([]domain.Message, error)
}

// LiveSource is satisfied by the connection controller.
type LiveSource interface {
	Live() []domain.Message
}

// View is one open conversation.
type View struct {
	scope   Scope
	history HistoryFetcher
	live    LiveSource

	mu      sync.Mutex
	fetched []domain.Message
}

func NewView(scope Scope, history HistoryFetcher, live LiveSource) *View {
	return &View{scope: scope, history: history, live: live}
}

func (v *View) Scope() Scope {
	return v.scope
}

// Refresh refetches history and returns the merged conversation. On a fetch
// error the previously fetched history is kept and still merged.
func (v *View) Refresh(ctx context.Context) ([]domain.Message, error) {
	history, err := v.history.Fetch(ctx, v.scope)
	if err != nil {
		return v.Messages(), err
	}
	v.mu.Lock()
	v.fetched = history
	v.mu.Unlock()
	return v.Messages(), nil
}

// Messages merges the last fetched history with the current live buffer
// without touching the network.
func (v *View) Messages() []domain.Message {
	v.mu.Lock()
	history := v.fetched
	v.mu.Unlock()

	var live []domain.Message
	if v.live != nil {
		live = v.live.Live()
	}
	return Merge(history, live, v.scope)
}
