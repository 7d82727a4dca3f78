// Package outbox implements the durable client-side message store.
//
// Every message a client composes or receives is kept as a [messaging.Record]
// keyed by message ID. The store is the source of truth for reconnect replay:
// records authored locally with Synced == false are re-emitted when the channel
// comes back.
//
// # Backends
//
//   - [MemoryStore]: insertion-ordered map, used in tests and as the degraded
//     fallback when durable storage is unavailable.
//   - [PebbleStore]: cockroachdb/pebble LSM store under a data directory.
//   - [SQLiteStore]: mattn/go-sqlite3 with an embedded migration set.
//
// # Contract
//
// Put upserts by ID and is idempotent. Get returns [ErrNotFound] for a missing
// ID. Delete of a missing ID is a no-op. All yields records lazily in storage
// order and may be ranged over any number of times. Each call commits fully or
// not at all.
//
// Tombstones record IDs the user deleted so that a later history snapshot does
// not resurrect them.
//
// # Degradation
//
// [Open] falls back to a MemoryStore when the configured backend cannot be
// opened, and [Guarded] turns runtime storage failures into logged no-ops, so
// callers never have to handle a storage outage:
//
//	store := outbox.Open(outbox.Config{Type: "pebble", Path: dir})
//	defer store.Close()
package outbox
