package outbox

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/relaysync/messaging"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"pebble": func(t *testing.T) Store {
			s, err := OpenPebble("outbox", vfs.NewMem())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func record(id string, status messaging.Status) messaging.Record {
	return messaging.Record{
		Message: messaging.Message{
			ID:          id,
			Text:        "text " + id,
			Author:      "client-a",
			DisplayName: "Alice",
			CreatedAt:   1700000000000,
			Status:      status,
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get missing", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				_, err := s.Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("put converges to last write", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Put(ctx, record("m1", messaging.StatusSent)))
				require.NoError(t, s.Put(ctx, record("m1", messaging.StatusSent)))
				last := record("m1", messaging.StatusSeen)
				last.Synced = true
				require.NoError(t, s.Put(ctx, last))

				got, err := s.Get(ctx, "m1")
				require.NoError(t, err)
				assert.Equal(t, last, got)

				all, err := Collect(ctx, s)
				require.NoError(t, err)
				assert.Len(t, all, 1)
			})

			t.Run("delete", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				require.NoError(t, s.Put(ctx, record("m1", messaging.StatusSent)))
				require.NoError(t, s.Delete(ctx, "m1"))
				require.NoError(t, s.Delete(ctx, "m1"), "deleting a missing id is a no-op")
				_, err := s.Get(ctx, "m1")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("iteration is restartable", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				for i := 0; i < 5; i++ {
					require.NoError(t, s.Put(ctx, record(fmt.Sprintf("m%d", i), messaging.StatusSent)))
				}
				first, err := Collect(ctx, s)
				require.NoError(t, err)
				second, err := Collect(ctx, s)
				require.NoError(t, err)
				assert.Len(t, first, 5)
				assert.Equal(t, first, second)
			})

			t.Run("write during iteration", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				for i := 0; i < 3; i++ {
					require.NoError(t, s.Put(ctx, record(fmt.Sprintf("m%d", i), messaging.StatusSent)))
				}
				for rec, err := range s.All(ctx) {
					require.NoError(t, err)
					rec.Synced = true
					require.NoError(t, s.Put(ctx, rec))
				}
				all, err := Collect(ctx, s)
				require.NoError(t, err)
				for _, rec := range all {
					assert.True(t, rec.Synced, rec.ID)
				}
			})

			t.Run("tombstones", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				ok, err := s.HasTombstone(ctx, "m1")
				require.NoError(t, err)
				assert.False(t, ok)

				require.NoError(t, s.PutTombstone(ctx, "m1"))
				require.NoError(t, s.PutTombstone(ctx, "m1"))
				ok, err = s.HasTombstone(ctx, "m1")
				require.NoError(t, err)
				assert.True(t, ok)
			})
		})
	}
}

func TestMemoryStoreInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, record(id, messaging.StatusSent)))
	}
	require.NoError(t, s.Put(ctx, record("a", messaging.StatusDelivered)))

	all, err := Collect(ctx, s)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, rec := range all {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, 3, s.Len())
}

func TestSQLiteStoreKeepsSequenceOnUpsert(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < sqlitePageSize+10; i++ {
		require.NoError(t, s.Put(ctx, record(fmt.Sprintf("m%03d", i), messaging.StatusSent)))
	}
	require.NoError(t, s.Put(ctx, record("m000", messaging.StatusSeen)))

	all, err := Collect(ctx, s)
	require.NoError(t, err)
	require.Len(t, all, sqlitePageSize+10)
	assert.Equal(t, "m000", all[0].ID)
	assert.Equal(t, messaging.StatusSeen, all[0].Status)
}

func TestPebbleStoreReopen(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	s, err := OpenPebble("outbox", fs)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, record("m1", messaging.StatusDelivered)))
	require.NoError(t, s.PutTombstone(ctx, "gone"))
	require.NoError(t, s.Close())

	s, err = OpenPebble("outbox", fs)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusDelivered, got.Status)
	ok, err := s.HasTombstone(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := Collect(ctx, s)
	require.NoError(t, err)
	assert.Len(t, all, 1, "tombstones are not records")
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(ctx, record("m1", messaging.StatusSent)), ErrClosed)
	_, err := Collect(ctx, s)
	assert.ErrorIs(t, err, ErrClosed)
}
