package messaging

import (
	"fmt"
	"time"

	"github.com/opd-ai/relaysync/limits"
)

// Status represents the delivery state of a message.
type Status uint8

const (
	// StatusSent means the message exists locally; no recipient has confirmed it.
	StatusSent Status = iota + 1
	// StatusDelivered means at least one recipient channel acknowledged receipt.
	StatusDelivered
	// StatusSeen means a recipient reported visual exposure. Terminal.
	StatusSeen
)

var statusNames = map[Status]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusSeen:      "seen",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is one of the defined states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// After reports whether s is strictly later than other in the lifecycle.
func (s Status) After(other Status) bool {
	return s > other
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSeen
}

// ParseStatus converts a wire name into a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DeleteScope selects local-only or global deletion.
type DeleteScope string

const (
	// ScopeMe removes the message from the requesting client only.
	ScopeMe DeleteScope = "me"
	// ScopeEveryone removes the message from the shared history and all clients.
	ScopeEveryone DeleteScope = "everyone"
)

// Valid reports whether the scope is one of the defined values.
func (d DeleteScope) Valid() bool {
	return d == ScopeMe || d == ScopeEveryone
}

// Message is the unit of conversation.
type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Author      string `json:"author"`
	DisplayName string `json:"displayName"`
	// CreatedAt is the author's wall clock in Unix milliseconds.
	CreatedAt int64  `json:"createdAt"`
	Status    Status `json:"status"`

	// Origin is derived locally from Author and never serialized.
	Origin bool `json:"-"`
}

// Time returns CreatedAt as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// Validate checks the fields that must hold for any message crossing a boundary.
func (m Message) Validate() error {
	if err := limits.ValidateIdentifier(m.ID); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	if err := limits.ValidateIdentifier(m.Author); err != nil {
		return fmt.Errorf("message author: %w", err)
	}
	if err := limits.ValidateText(m.Text); err != nil {
		return err
	}
	if len(m.DisplayName) > limits.MaxDisplayNameLength {
		return fmt.Errorf("%w: display name size %d", limits.ErrDisplayNameTooLarge, len(m.DisplayName))
	}
	if m.CreatedAt <= 0 {
		return fmt.Errorf("message %s has no creation time", m.ID)
	}
	return nil
}

// Record is a Message plus the local bookkeeping kept by the outbox.
type Record struct {
	Message
	// Synced is true once this client's own message was emitted to the hub.
	Synced bool `json:"synced"`
}

// Builder composes new messages for a single client identity.
type Builder struct {
	self  string
	clock TimeProvider
	ids   IDGenerator
}

// NewBuilder creates a Builder. Nil providers fall back to the real clock and UUIDs.
func NewBuilder(self string, clock TimeProvider, ids IDGenerator) *Builder {
	if clock == nil {
		clock = DefaultTimeProvider{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Builder{self: self, clock: clock, ids: ids}
}

// Self returns the identity messages are composed for.
func (b *Builder) Self() string {
	return b.self
}

// Compose creates a new outbound record in the initial state.
func (b *Builder) Compose(displayName, text string) (Record, error) {
	if err := limits.ValidateText(text); err != nil {
		return Record{}, err
	}
	msg := Message{
		ID:          b.ids.New(),
		Text:        text,
		Author:      b.self,
		DisplayName: displayName,
		CreatedAt:   b.clock.Now().UnixMilli(),
		Status:      StatusSent,
		Origin:      true,
	}
	return Record{Message: msg, Synced: false}, nil
}
