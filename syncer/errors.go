package syncer

import "errors"

var (
	// ErrUnknownMessage indicates an operation on a message that is not stored locally.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrInvalidScope indicates a delete scope other than "me" or "everyone".
	ErrInvalidScope = errors.New("invalid delete scope")

	// ErrNotAuthor indicates a global deletion of another client's message.
	ErrNotAuthor = errors.New("only the author can delete for everyone")
)
