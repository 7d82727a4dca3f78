// Package messaging defines the data model shared by the relay client and the
// broadcast hub: the chat Message, its delivery Status, the client-side outbox
// Record, and the persistent client identity.
//
// # Message Lifecycle
//
// A message is created by its author with a globally unique ID and an initial
// status of StatusSent. Only the status changes afterwards:
//
//	Sent -> Delivered -> Seen
//
// Status values are totally ordered and never regress; [Status.After] is the
// comparison used by the status tracker. Text, author and creation time are
// immutable once the message exists.
//
// # Identity
//
// Every client instance owns a persistent identifier of the form
// "client-<uuid>" created once by [NewClientID]. It is distinct from the
// transient session identifier the hub assigns per connection, and it is the
// only input used to classify a message as authored locally:
//
//	rec.Origin = rec.Author == selfID
//
// Origin is never read from the wire.
//
// # Testing
//
// Message construction takes a [TimeProvider] and an [IDGenerator] so tests can
// produce deterministic timestamps and IDs:
//
//	b := messaging.NewBuilder("client-a", fixedClock{}, sequentialIDs{})
//	msg, err := b.Compose("Alice", "hello")
package messaging
