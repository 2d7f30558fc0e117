// Package badger is an embedded message store for single-node deployments.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type Store struct {
	db    *badger.DB
	clock *repository.Clock
}

var _ repository.Repository = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, repository.NewClock(nil)), nil
}

func New(db *badger.DB, clock *repository.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// messageKey is "msg:{conversation}:{unixnano, 19 digits}:{id}". The zero
// padding keeps lexicographic order equal to chronological order and the id
// separates messages created in the same nanosecond.
func messageKey(m *domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ConversationKey(), m.CreatedAt.UnixNano(), m.ID))
}

func historyPrefix(userA, userB, listingID string) []byte {
	if listingID == "" {
		// every listing between the pair
		return []byte("msg:" + domain.PairKey(userA, userB))
	}
	return []byte("msg:" + domain.ConversationKey(userA, userB, listingID) + ":")
}

func (s *Store) Persist(ctx context.Context, d domain.Draft) (*domain.Message, error) {
	msg, err := domain.NewMessage(uuid.NewString(), d, s.clock.Next())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), payload)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return msg, nil
}

func (s *Store) ListHistory(ctx context.Context, userA, userB, listingID string, limit int) ([]*domain.Message, error) {
	limit = repository.NormalizeLimit(limit)
	prefix := historyPrefix(userA, userB, listingID)

	var messages []*domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				messages = append(messages, &m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list history: %v", repository.ErrUnavailable, err)
	}

	// A pair-wide scan walks listing by listing, so re-sort across listings.
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return repository.ErrUnavailable
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
