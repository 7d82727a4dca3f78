package outbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/relaysync/messaging"
)

func TestGuardedAbsorbsFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{}
	g := NewGuarded(inner)

	assert.NoError(t, g.Put(ctx, record("m1", messaging.StatusSent)))
	_, err := g.Get(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, g.Delete(ctx, "m1"))
	assert.NoError(t, g.PutTombstone(ctx, "m1"))

	ok, err := g.HasTombstone(ctx, "m1")
	assert.NoError(t, err)
	assert.False(t, ok)

	all, err := Collect(ctx, g)
	assert.NoError(t, err)
	assert.Empty(t, all)

	assert.NoError(t, g.Close())
	assert.True(t, inner.closed)
	assert.Equal(t, uint64(7), g.Failures())
}

func TestGuardedNotFoundIsNotAFailure(t *testing.T) {
	g := NewGuarded(NewMemoryStore())
	_, err := g.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, g.Failures())
	assert.Same(t, g, NewGuarded(g))
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: TypeMemory}, false},
		{"empty type", Config{}, false},
		{"pebble", Config{Type: TypePebble, Path: filepath.Join(dir, "pebble")}, false},
		{"sqlite dir", Config{Type: TypeSQLite, Path: filepath.Join(dir, "sqlite")}, false},
		{"sqlite memory", Config{Type: TypeSQLite, Path: ":memory:"}, false},
		{"pebble no path", Config{Type: TypePebble}, true},
		{"unknown", Config{Type: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenBackend(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	g := Open(Config{Type: TypePebble, Path: filepath.Join(blocker, "outbox")})
	defer g.Close()

	_, isMemory := g.inner.(*MemoryStore)
	assert.True(t, isMemory)

	ctx := context.Background()
	require.NoError(t, g.Put(ctx, record("m1", messaging.StatusSent)))
	got, err := g.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}
