package status

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/outbox"
)

// Change describes an accepted status transition.
type Change struct {
	ID   string
	From messaging.Status
	To   messaging.Status
}

// Tracker advances message status monotonically.
// It holds no state of its own; the outbox record is authoritative.
type Tracker struct {
	store outbox.Store
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store outbox.Store) *Tracker {
	return &Tracker{store: store}
}

// Advance moves message id to next if next is strictly later than its current
// status. It reports the transition and whether one happened.
func (t *Tracker) Advance(ctx context.Context, id string, next messaging.Status) (Change, bool) {
	rec, ok := t.lookup(ctx, id, next)
	if !ok {
		return Change{}, false
	}
	return t.apply(ctx, rec, next, rec.Synced)
}

// AdvanceSynced behaves like Advance and also marks the record synced. A status
// update for the client's own message proves the hub received it. The synced
// flag is persisted even when the status does not move.
func (t *Tracker) AdvanceSynced(ctx context.Context, id string, next messaging.Status) (Change, bool) {
	rec, ok := t.lookup(ctx, id, next)
	if !ok {
		return Change{}, false
	}
	return t.apply(ctx, rec, next, true)
}

func (t *Tracker) lookup(ctx context.Context, id string, next messaging.Status) (messaging.Record, bool) {
	if !next.Valid() {
		logrus.WithFields(logrus.Fields{
			"function": "Tracker.Advance",
			"id":       id,
			"status":   next.String(),
		}).Debug("Ignoring invalid status")
		return messaging.Record{}, false
	}

	rec, err := t.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, outbox.ErrNotFound) {
			logrus.WithFields(logrus.Fields{
				"function": "Tracker.Advance",
				"id":       id,
				"error":    err.Error(),
			}).Warn("Outbox lookup failed")
		}
		logrus.WithFields(logrus.Fields{
			"function": "Tracker.Advance",
			"id":       id,
			"status":   next.String(),
		}).Debug("Status update for unknown message")
		return messaging.Record{}, false
	}
	return rec, true
}

func (t *Tracker) apply(ctx context.Context, rec messaging.Record, next messaging.Status, synced bool) (Change, bool) {
	advance := next.After(rec.Status)
	if !advance && synced == rec.Synced {
		logrus.WithFields(logrus.Fields{
			"function": "Tracker.Advance",
			"id":       rec.ID,
			"current":  rec.Status.String(),
			"status":   next.String(),
		}).Debug("Ignoring non-advancing status update")
		return Change{}, false
	}

	change := Change{ID: rec.ID, From: rec.Status, To: rec.Status}
	if advance {
		change.To = next
		rec.Status = next
	}
	rec.Synced = synced

	if err := t.store.Put(ctx, rec); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Tracker.Advance",
			"id":       rec.ID,
			"error":    err.Error(),
		}).Warn("Failed to persist status change")
	}

	if !advance {
		return Change{}, false
	}

	logrus.WithFields(logrus.Fields{
		"function": "Tracker.Advance",
		"id":       rec.ID,
		"from":     change.From.String(),
		"to":       change.To.String(),
	}).Debug("Status advanced")
	return change, true
}
