package event

import "errors"

var (
	// ErrUnknownEvent indicates an envelope with an unrecognized event name.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidPayload indicates a payload that does not match its event schema.
	ErrInvalidPayload = errors.New("invalid event payload")
)
