package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

type docKey struct {
	collection, owner, key string
}

type memDoc struct {
	seq  uint64
	body []byte
}

// MemoryStore is an in-process DocumentStore. Data is lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[docKey]memDoc
	seq    uint64
	closed bool
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[docKey]memDoc)}
}

// Get returns a copy of the stored body or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, collection, owner, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	d, ok := m.docs[docKey{collection, owner, key}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(d.body), nil
}

// Put inserts or replaces the body under key.
func (m *MemoryStore) Put(_ context.Context, collection, owner, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	k := docKey{collection, owner, key}
	d, ok := m.docs[k]
	if !ok {
		m.seq++
		d.seq = m.seq
	}
	d.body = slices.Clone(body)
	m.docs[k] = d
	return nil
}

// Create stores body only if key is free, otherwise ErrConflict.
func (m *MemoryStore) Create(_ context.Context, collection, owner, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	k := docKey{collection, owner, key}
	if _, ok := m.docs[k]; ok {
		return ErrConflict
	}
	m.seq++
	m.docs[k] = memDoc{seq: m.seq, body: slices.Clone(body)}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryStore) Delete(_ context.Context, collection, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.docs, docKey{collection, owner, key})
	return nil
}

// List returns copies of every body the owner has in collection in insertion order.
func (m *MemoryStore) List(_ context.Context, collection, owner string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var found []memDoc
	for k, d := range m.docs {
		if k.collection == collection && k.owner == owner {
			found = append(found, d)
		}
	}
	slices.SortFunc(found, func(a, b memDoc) int { return cmp.Compare(a.seq, b.seq) })
	out := make([][]byte, len(found))
	for i, d := range found {
		out[i] = slices.Clone(d.body)
	}
	return out, nil
}

// Owners returns the distinct owners with data in collection, sorted.
func (m *MemoryStore) Owners(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	seen := map[string]struct{}{}
	var out []string
	for k := range m.docs {
		if k.collection != collection {
			continue
		}
		if _, ok := seen[k.owner]; !ok {
			seen[k.owner] = struct{}{}
			out = append(out, k.owner)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Close marks the store closed. Later calls return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
