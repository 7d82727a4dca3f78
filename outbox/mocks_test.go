package outbox

import (
	"context"
	"errors"
	"iter"

	"github.com/opd-ai/relaysync/messaging"
)

var errDiskGone = errors.New("disk gone")

// failingStore fails every operation.
type failingStore struct {
	closed bool
}

func (f *failingStore) Put(context.Context, messaging.Record) error { return errDiskGone }

func (f *failingStore) Get(context.Context, string) (messaging.Record, error) {
	return messaging.Record{}, errDiskGone
}

func (f *failingStore) Delete(context.Context, string) error { return errDiskGone }

func (f *failingStore) All(context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) {
		yield(messaging.Record{}, errDiskGone)
	}
}

func (f *failingStore) PutTombstone(context.Context, string) error { return errDiskGone }

func (f *failingStore) HasTombstone(context.Context, string) (bool, error) { return false, errDiskGone }

func (f *failingStore) Close() error {
	f.closed = true
	return errDiskGone
}
