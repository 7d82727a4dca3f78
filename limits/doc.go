// Package limits provides centralized size constants and validation functions
// for relayed chat data. Both the client engine and the broadcast hub validate
// against the same limits so a message accepted by one side is never rejected
// by the other.
//
// # Limits
//
//   - MaxTextLength (4096 bytes): the largest message body a client may compose.
//   - MaxDisplayNameLength (64 bytes): the largest display label.
//   - MaxIdentityLength (128 bytes): the largest persistent client identifier
//     or message ID accepted from the wire.
//   - MaxFrameSize (64KB): the largest single websocket frame the hub reads
//     from a client. Hub to client frames are not bounded by it because a
//     history snapshot grows with the conversation.
//
// # Validation Functions
//
//	if err := limits.ValidateText(text); err != nil {
//	    // ErrTextEmpty or ErrTextTooLarge
//	}
//
// Display names are trimmed by the caller; an empty name is rejected with
// ErrDisplayNameEmpty so the hub keeps the generated default instead.
package limits
