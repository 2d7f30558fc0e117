package domain

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrSelfMessage     = errors.New("cannot send a message to yourself")
	ErrMessageTooLarge = errors.New("message too large")
	ErrInvalidMessage  = errors.New("invalid message")
)
