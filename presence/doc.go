// Package presence coordinates typing indicators on the client.
//
// [Typing] turns a stream of keystroke-level input events into one
// typing-start and one typing-stop signal. The first input after idle emits
// start and arms a debounce timer; further input re-arms it, cancelling the
// previous timer handle. When the timer expires with no further input, stop is
// emitted. Sending a message calls [Typing.Stop], which emits stop
// immediately.
//
// [Indicators] tracks which peers are currently shown as typing. A start for
// a peer already shown is a no-op, and a stop or a message from the peer
// removes the entry.
//
// Timers are created through [TimeProvider] so tests can drive expiry by hand.
package presence
