package repository

import "errors"

var (
	// ErrNotFound is returned when a negotiation does not exist
	ErrNotFound = errors.New("repository: negotiation not found")
	// ErrDuplicateMessage is returned when a message-id is already indexed
	ErrDuplicateMessage = errors.New("repository: message already consumed")
)
