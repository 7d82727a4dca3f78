package outbox

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/messaging"
)

// Guarded wraps a Store so that storage failures are logged and absorbed.
// Writes that fail are dropped, a failed Get reports ErrNotFound, and a failed
// iteration ends the sequence. Callers only ever see ErrNotFound.
type Guarded struct {
	inner    Store
	failures atomic.Uint64
}

// NewGuarded wraps s. Wrapping a Guarded returns it unchanged.
func NewGuarded(s Store) *Guarded {
	if g, ok := s.(*Guarded); ok {
		return g
	}
	return &Guarded{inner: s}
}

// Failures returns the number of absorbed storage errors.
func (g *Guarded) Failures() uint64 {
	return g.failures.Load()
}

func (g *Guarded) fail(op, id string, err error) {
	g.failures.Add(1)
	logrus.WithFields(logrus.Fields{
		"function": "Guarded." + op,
		"id":       id,
		"error":    err.Error(),
	}).Warn("Outbox operation failed, continuing without persistence")
}

func (g *Guarded) Put(ctx context.Context, rec messaging.Record) error {
	if err := g.inner.Put(ctx, rec); err != nil {
		g.fail("Put", rec.ID, err)
	}
	return nil
}

func (g *Guarded) Get(ctx context.Context, id string) (messaging.Record, error) {
	rec, err := g.inner.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		g.fail("Get", id, err)
	}
	return messaging.Record{}, ErrNotFound
}

func (g *Guarded) Delete(ctx context.Context, id string) error {
	if err := g.inner.Delete(ctx, id); err != nil {
		g.fail("Delete", id, err)
	}
	return nil
}

func (g *Guarded) All(ctx context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) {
		for rec, err := range g.inner.All(ctx) {
			if err != nil {
				g.fail("All", "", err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (g *Guarded) PutTombstone(ctx context.Context, id string) error {
	if err := g.inner.PutTombstone(ctx, id); err != nil {
		g.fail("PutTombstone", id, err)
	}
	return nil
}

func (g *Guarded) HasTombstone(ctx context.Context, id string) (bool, error) {
	ok, err := g.inner.HasTombstone(ctx, id)
	if err != nil {
		g.fail("HasTombstone", id, err)
		return false, nil
	}
	return ok, nil
}

func (g *Guarded) Close() error {
	if err := g.inner.Close(); err != nil {
		g.fail("Close", "", err)
	}
	return nil
}
