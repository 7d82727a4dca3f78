package outbox

import (
	"context"
	"iter"
	"sync"

	"github.com/opd-ai/relaysync/messaging"
)

// MemoryStore keeps records in memory in insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]messaging.Record
	order      []string
	tombstones map[string]struct{}
	closed     bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]messaging.Record),
		tombstones: make(map[string]struct{}),
	}
}

func (m *MemoryStore) Put(_ context.Context, rec messaging.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.records[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (messaging.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return messaging.Record{}, ErrClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return messaging.Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.records[id]; !ok {
		return nil
	}
	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// All walks a snapshot of the key order taken when iteration starts; records
// deleted during iteration are skipped.
func (m *MemoryStore) All(ctx context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(messaging.Record{}, ErrClosed)
			return
		}
		ids := make([]string, len(m.order))
		copy(ids, m.order)
		m.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(messaging.Record{}, err)
				return
			}
			m.mu.RLock()
			rec, ok := m.records[id]
			m.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (m *MemoryStore) PutTombstone(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.tombstones[id] = struct{}{}
	return nil
}

func (m *MemoryStore) HasTombstone(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.tombstones[id]
	return ok, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
