package messaging

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientIDPrefix marks persistent client identifiers.
const ClientIDPrefix = "client-"

// TimeProvider abstracts time retrieval so message timestamps are deterministic in tests.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// NewClientID creates a fresh persistent client identifier.
func NewClientID() string {
	return ClientIDPrefix + uuid.New().String()
}

// IsClientID reports whether id looks like an identifier created by NewClientID.
func IsClientID(id string) bool {
	rest, ok := strings.CutPrefix(id, ClientIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
