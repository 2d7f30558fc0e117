package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

var ErrUnavailable = errors.New("message store unavailable")

// Repository is the durable, append-only message store.
type Repository interface {
	// Persist assigns an id and creation time to the draft and stores it.
	Persist(ctx context.Context, d domain.Draft) (*domain.Message, error)
	// ListHistory returns messages exchanged between userA and userB in either
	// direction, oldest first. An empty listingID matches every listing.
	ListHistory(ctx context.Context, userA, userB, listingID string, limit int) ([]*domain.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// Clock hands out creation times that never go backwards, even if the wall
// clock does. One watermark covers every conversation, so memory stays
// constant however many pairs the store sees.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
