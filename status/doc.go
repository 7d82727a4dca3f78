// Package status applies delivery acknowledgements to stored messages.
//
// A message moves through sent, delivered and seen, in that order only. The
// [Tracker] accepts a transition when the new status is strictly later than the
// stored one and persists it through the outbox. Equal or regressive updates,
// and updates for messages this client never stored, are ignored.
package status
