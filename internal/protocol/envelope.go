// Package protocol defines the JSON envelopes exchanged over a chat connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
)

type Type string

const (
	TypeAuth        Type = "auth"
	TypeAuthSuccess Type = "auth_success"
	TypeSendMessage Type = "send_message"
	TypeNewMessage  Type = "new_message"
	TypeMessageSent Type = "message_sent"
	TypeError       Type = "error"
)

// Error codes carried by an error envelope.
const (
	CodeProtocol     = "protocol"
	CodeValidation   = "validation"
	CodePersistence  = "persistence"
	CodeUnauthorized = "unauthorized"
)

var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownType = errors.New("unknown envelope type")
)

// Envelope is the tagged union of every frame on the wire. Only the fields
// relevant to Type are populated.
type Envelope struct {
	Type        Type            `json:"type"`
	UserID      string          `json:"userId,omitempty"`
	Token       string          `json:"token,omitempty"`
	ReceiverID  string          `json:"receiverId,omitempty"`
	Content     string          `json:"content,omitempty"`
	ListingID   string          `json:"listingId,omitempty"`
	ClientMsgID string          `json:"clientMsgId,omitempty"`
	Message     *domain.Message `json:"message,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Code        string          `json:"code,omitempty"`
}

func Auth(userID, token string) Envelope {
	return Envelope{Type: TypeAuth, UserID: userID, Token: token}
}

func AuthSuccess(userID string) Envelope {
	return Envelope{Type: TypeAuthSuccess, UserID: userID}
}

func SendMessage(receiverID, content, listingID string) Envelope {
	return Envelope{Type: TypeSendMessage, ReceiverID: receiverID, Content: content, ListingID: listingID}
}

func NewMessage(msg *domain.Message) Envelope {
	return Envelope{Type: TypeNewMessage, Message: msg}
}

func MessageSent(msg *domain.Message, clientMsgID string) Envelope {
	return Envelope{Type: TypeMessageSent, Message: msg, ClientMsgID: clientMsgID}
}

func Error(code, reason, clientMsgID string) Envelope {
	return Envelope{Type: TypeError, Code: code, Reason: reason, ClientMsgID: clientMsgID}
}

// Decode parses a frame and fails closed: unknown types and variants missing
// their mandatory fields are rejected instead of being ignored.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeAuth, TypeAuthSuccess:
		if env.UserID == "" {
			return Envelope{}, fmt.Errorf("%w: %s without userId", ErrMalformed, env.Type)
		}
	case TypeSendMessage:
		if env.ReceiverID == "" {
			return Envelope{}, fmt.Errorf("%w: send_message without receiverId", ErrMalformed)
		}
	case TypeNewMessage, TypeMessageSent:
		if env.Message == nil || env.Message.ID == "" {
			return Envelope{}, fmt.Errorf("%w: %s without message", ErrMalformed, env.Type)
		}
	case TypeError:
	case "":
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
