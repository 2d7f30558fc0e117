package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxMessageSize is the content limit in UTF-8 bytes.
const MaxMessageSize = 5000

var validate = validator.New(validator.WithRequiredStructEnabled())

// Message Invariants:
// 1. Immutability: a persisted message is never mutated or deleted.
// 2. Identity: ID and CreatedAt are assigned by the store, never by a client.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	ListingID  string    `json:"listingId,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Draft is a send request that has not been persisted yet.
type Draft struct {
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required"`
	ListingID  string
	Content    string
}

func (d Draft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return ErrInvalidInput
	}
	// bytes, not runes
	if len(d.Content) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	if d.SenderID == d.ReceiverID {
		return ErrSelfMessage
	}
	return nil
}

func (d Draft) ConversationKey() string {
	return ConversationKey(d.SenderID, d.ReceiverID, d.ListingID)
}

func NewMessage(id string, d Draft, now time.Time) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessage
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Message{
		ID:         id,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		ListingID:  d.ListingID,
		Content:    d.Content,
		CreatedAt:  now,
	}, nil
}

func (m *Message) ConversationKey() string {
	return ConversationKey(m.SenderID, m.ReceiverID, m.ListingID)
}

// Involves reports whether the message was exchanged between a and b,
// in either direction, and (when listingID is set) about that listing.
func (m *Message) Involves(a, b, listingID string) bool {
	if listingID != "" && m.ListingID != listingID {
		return false
	}
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// ConversationKey is independent of who sends: A->B and B->A share a key.
// Every part is length-prefixed, so ids containing the separator cannot make
// two conversations share a key.
func ConversationKey(a, b, listingID string) string {
	return PairKey(a, b) + keyPart(listingID)
}

// PairKey is the prefix shared by the keys of every conversation between a
// and b, whatever the listing. No other pair's keys start with it.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return keyPart(a) + "|" + keyPart(b) + "|"
}

func keyPart(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}
