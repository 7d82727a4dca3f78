package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/messaging"
)

const (
	recordPrefix    = "msg/"
	tombstonePrefix = "tomb/"
)

// PebbleStore persists records in a pebble database. Records are JSON values
// under "msg/<id>"; tombstones are empty values under "tomb/<id>".
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// OpenPebble opens or creates a pebble store at path. A nil fs uses the OS filesystem.
func OpenPebble(path string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	} else if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create outbox directory: %w", err)
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble outbox %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpenPebble",
		"path":     path,
	}).Debug("Opened pebble outbox")

	return &PebbleStore{db: db, path: path}, nil
}

func (p *PebbleStore) Put(_ context.Context, rec messaging.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return p.db.Set([]byte(recordPrefix+rec.ID), value, pebble.Sync)
}

func (p *PebbleStore) Get(_ context.Context, id string) (messaging.Record, error) {
	value, closer, err := p.db.Get([]byte(recordPrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return messaging.Record{}, ErrNotFound
	}
	if err != nil {
		return messaging.Record{}, err
	}
	defer closer.Close()

	var rec messaging.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return messaging.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

func (p *PebbleStore) Delete(_ context.Context, id string) error {
	return p.db.Delete([]byte(recordPrefix+id), pebble.Sync)
}

// All iterates the "msg/" key range. Values are decoded before yielding, so
// callers may write to the store from inside the loop.
func (p *PebbleStore) All(ctx context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) {
		it, err := p.db.NewIter(prefixBounds(recordPrefix))
		if err != nil {
			yield(messaging.Record{}, err)
			return
		}
		defer it.Close()

		for ok := it.First(); ok; ok = it.Next() {
			if err := ctx.Err(); err != nil {
				yield(messaging.Record{}, err)
				return
			}
			var rec messaging.Record
			if err := json.Unmarshal(it.Value(), &rec); err != nil {
				if !yield(messaging.Record{}, fmt.Errorf("decode record %s: %w", it.Key(), err)) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(messaging.Record{}, err)
		}
	}
}

func (p *PebbleStore) PutTombstone(_ context.Context, id string) error {
	return p.db.Set([]byte(tombstonePrefix+id), nil, pebble.Sync)
}

func (p *PebbleStore) HasTombstone(_ context.Context, id string) (bool, error) {
	_, closer, err := p.db.Get([]byte(tombstonePrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func prefixBounds(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	}
}
