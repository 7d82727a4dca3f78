package outbox

import (
	"context"
	"errors"
	"iter"

	"github.com/opd-ai/relaysync/messaging"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("outbox closed")
)

// Store is a key-value store of message records keyed by message ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces the record with rec.ID.
	Put(ctx context.Context, rec messaging.Record) error
	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (messaging.Record, error)
	// Delete removes the record with the given ID. Missing IDs are not an error.
	Delete(ctx context.Context, id string) error
	// All yields every record in storage order.
	All(ctx context.Context) iter.Seq2[messaging.Record, error]
	// PutTombstone marks id as deleted locally.
	PutTombstone(ctx context.Context, id string) error
	// HasTombstone reports whether id was marked deleted.
	HasTombstone(ctx context.Context, id string) (bool, error)
	// Close releases the underlying resources.
	Close() error
}

// Collect drains All into a slice, stopping at the first error.
func Collect(ctx context.Context, s Store) ([]messaging.Record, error) {
	var out []messaging.Record
	for rec, err := range s.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
