package event

import (
	"encoding/json"
	"fmt"

	"github.com/opd-ai/relaysync/limits"
	"github.com/opd-ai/relaysync/messaging"
)

// Name identifies an event type on the wire.
type Name string

const (
	NameHistorySnapshot Name = "history-snapshot"
	NameMessage         Name = "message"
	NameStatusUpdate    Name = "status-update"
	NameDeliveredAck    Name = "delivered-ack"
	NameSeenAck         Name = "seen-ack"
	NameTyping          Name = "typing"
	NameOnlineCount     Name = "online-count"
	NameDeleteMessage   Name = "delete-message"
	NameSetDisplayName  Name = "set-display-name"
)

// Event is one decoded, validated channel event.
type Event interface {
	Name() Name
	Validate() error
	payload() any
}

// Envelope is the wire form of an event.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HistorySnapshot is the full history sent to a session when it connects.
type HistorySnapshot []messaging.Message

// Message carries a new or replayed chat message.
type Message struct {
	messaging.Message
}

// StatusUpdate reports an acknowledgement routed through the hub.
type StatusUpdate struct {
	ID     string           `json:"id"`
	Status messaging.Status `json:"status"`
}

// DeliveredAck is raised by a recipient that stored a message.
type DeliveredAck string

// SeenAck is raised by a recipient that displayed a message.
type SeenAck string

// Typing reports typing intent. The hub overwrites Identity and DisplayName
// with the originating session's values before relaying.
type Typing struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Active      bool   `json:"active"`
}

// OnlineCount is the number of connected sessions.
type OnlineCount int

// DeleteMessage asks for a message to be removed.
type DeleteMessage struct {
	ID    string                `json:"id"`
	Scope messaging.DeleteScope `json:"scope"`
}

// SetDisplayName changes the label of the sending session.
type SetDisplayName string

func (HistorySnapshot) Name() Name { return NameHistorySnapshot }
func (Message) Name() Name         { return NameMessage }
func (StatusUpdate) Name() Name    { return NameStatusUpdate }
func (DeliveredAck) Name() Name    { return NameDeliveredAck }
func (SeenAck) Name() Name         { return NameSeenAck }
func (Typing) Name() Name          { return NameTyping }
func (OnlineCount) Name() Name     { return NameOnlineCount }
func (DeleteMessage) Name() Name   { return NameDeleteMessage }
func (SetDisplayName) Name() Name  { return NameSetDisplayName }

func (h HistorySnapshot) payload() any { return []messaging.Message(h) }
func (m Message) payload() any         { return m.Message }
func (s StatusUpdate) payload() any    { return s }
func (a DeliveredAck) payload() any    { return string(a) }
func (a SeenAck) payload() any         { return string(a) }
func (t Typing) payload() any          { return t }
func (c OnlineCount) payload() any     { return int(c) }
func (d DeleteMessage) payload() any   { return d }
func (s SetDisplayName) payload() any  { return string(s) }

func (h HistorySnapshot) Validate() error {
	for i, m := range h {
		if err := validateMessage(m); err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
	}
	return nil
}

func (m Message) Validate() error {
	return validateMessage(m.Message)
}

func validateMessage(m messaging.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: message %s has no status", ErrInvalidPayload, m.ID)
	}
	return nil
}

func (s StatusUpdate) Validate() error {
	if err := limits.ValidateIdentifier(s.ID); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: status %d", ErrInvalidPayload, s.Status)
	}
	return nil
}

func (a DeliveredAck) Validate() error { return limits.ValidateIdentifier(string(a)) }
func (a SeenAck) Validate() error      { return limits.ValidateIdentifier(string(a)) }

func (t Typing) Validate() error {
	if err := limits.ValidateIdentifier(t.Identity); err != nil {
		return err
	}
	if len(t.DisplayName) > limits.MaxDisplayNameLength {
		return limits.ErrDisplayNameTooLarge
	}
	return nil
}

func (c OnlineCount) Validate() error {
	if c < 0 {
		return fmt.Errorf("%w: negative online count %d", ErrInvalidPayload, c)
	}
	return nil
}

func (d DeleteMessage) Validate() error {
	if err := limits.ValidateIdentifier(d.ID); err != nil {
		return err
	}
	if !d.Scope.Valid() {
		return fmt.Errorf("%w: delete scope %q", ErrInvalidPayload, d.Scope)
	}
	return nil
}

func (s SetDisplayName) Validate() error {
	return limits.ValidateDisplayName(string(s))
}
