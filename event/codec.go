package event

import (
	"encoding/json"
	"fmt"
)

// Encode converts ev into its envelope.
func Encode(ev Event) (Envelope, error) {
	data, err := json.Marshal(ev.payload())
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return Envelope{Event: ev.Name(), Data: data}, nil
}

// Marshal encodes ev as a JSON envelope.
func Marshal(ev Event) ([]byte, error) {
	env, err := Encode(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal parses and validates a JSON envelope. Frame size is bounded by the
// reader; a history snapshot may legitimately exceed limits.MaxFrameSize.
func Unmarshal(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Decode(env)
}

// Decode maps an envelope onto its payload type and validates it.
func Decode(env Envelope) (Event, error) {
	var ev Event
	var err error

	switch env.Event {
	case NameHistorySnapshot:
		var v HistorySnapshot
		err = decodeData(env, &v)
		ev = v
	case NameMessage:
		var v Message
		err = decodeData(env, &v.Message)
		ev = v
	case NameStatusUpdate:
		var v StatusUpdate
		err = decodeData(env, &v)
		ev = v
	case NameDeliveredAck:
		var v DeliveredAck
		err = decodeData(env, &v)
		ev = v
	case NameSeenAck:
		var v SeenAck
		err = decodeData(env, &v)
		ev = v
	case NameTyping:
		var v Typing
		err = decodeData(env, &v)
		ev = v
	case NameOnlineCount:
		var v OnlineCount
		err = decodeData(env, &v)
		ev = v
	case NameDeleteMessage:
		var v DeleteMessage
		err = decodeData(env, &v)
		ev = v
	case NameSetDisplayName:
		var v SetDisplayName
		err = decodeData(env, &v)
		ev = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, err
	}

	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, env.Event, err)
	}
	return ev, nil
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Event, err)
	}
	return nil
}
