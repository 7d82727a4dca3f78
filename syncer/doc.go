// Package syncer reconciles the client outbox with the hub.
//
// The [Engine] is the client-side core. It owns the outbox, the status
// tracker and the typing state, and it is driven by three inputs:
//
//   - channel signals from the transport (HandleConnect, HandleDisconnect,
//     HandleEvent),
//   - user actions (Compose, Delete, SetDisplayName, TypingInput),
//   - presentation feedback (ExposureReported).
//
// # Reconnect replay
//
// On connect the engine walks the outbox in storage order and re-emits every
// record authored by this client that is not yet synced, persisting
// Synced = true before moving to the next record. Replay stops at the first
// emit the channel refuses, leaving the unsynced tail for the next connect.
//
// # Inbound messages
//
// A message whose ID is already stored, or was deleted locally, is dropped.
// Otherwise it is stored with status sent and the presentation layer is
// notified. Messages from peers are acknowledged with delivered-ack at once
// and with seen-ack when ExposureReported is called for them.
//
// # Notifications
//
// Every handler runs under a single mutex. Listener callbacks are collected
// while it is held and dispatched after it is released, so a Listener may
// call back into the Engine.
package syncer
