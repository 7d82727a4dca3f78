package limits

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTextLength is the maximum size of a message body in bytes.
	MaxTextLength = 4096

	// MaxDisplayNameLength is the maximum size of a display name in bytes.
	MaxDisplayNameLength = 64

	// MaxIdentityLength is the maximum size of client identifiers and message IDs.
	MaxIdentityLength = 128

	// MaxFrameSize is the maximum size of a single frame the hub reads from a client.
	MaxFrameSize = 64 * 1024
)

var (
	// ErrTextEmpty indicates an empty or whitespace-only message body.
	ErrTextEmpty = errors.New("empty message text")

	// ErrTextTooLarge indicates a message body exceeding MaxTextLength.
	ErrTextTooLarge = errors.New("message text too large")

	// ErrDisplayNameEmpty indicates an empty display name.
	ErrDisplayNameEmpty = errors.New("empty display name")

	// ErrDisplayNameTooLarge indicates a display name exceeding MaxDisplayNameLength.
	ErrDisplayNameTooLarge = errors.New("display name too large")

	// ErrIdentityInvalid indicates a missing, oversized or non-UTF-8 identifier.
	ErrIdentityInvalid = errors.New("invalid identifier")
)

// ValidateText checks a message body against MaxTextLength.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextEmpty
	}
	if len(text) > MaxTextLength {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTextTooLarge, len(text), MaxTextLength)
	}
	return nil
}

// ValidateDisplayName checks a display name against MaxDisplayNameLength.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLength {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDisplayNameTooLarge, len(name), MaxDisplayNameLength)
	}
	return nil
}

// ValidateIdentifier checks a message ID or client identity received from the wire.
func ValidateIdentifier(id string) error {
	if id == "" || len(id) > MaxIdentityLength || !utf8.ValidString(id) {
		return fmt.Errorf("%w: %q", ErrIdentityInvalid, truncate(id))
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}
