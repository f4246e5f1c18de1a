package storage

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a bounded in-process LRU store. Entries do not survive the process.
type MemoryStore struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

// NewMemoryStore returns a store holding at most capacity records (unbounded when not positive).
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the record for key and marks it recently used.
func (m *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.lru.MoveToFront(elem)
		return elem.Value.(Record), true, nil
	}
	return Record{}, false, nil
}

// Put stores the record, evicting the least recently used one when at capacity.
func (m *MemoryStore) Put(_ context.Context, key, text string, embedding []byte) error {
	rec := Record{
		Key:          key,
		Text:         text,
		HasText:      true,
		Embedding:    append([]byte(nil), embedding...),
		HasEmbedding: true,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		elem.Value = rec
		m.lru.MoveToFront(elem)
		return nil
	}
	m.items[key] = m.lru.PushFront(rec)
	if m.capacity > 0 && m.lru.Len() > m.capacity {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.items, oldest.Value.(Record).Key)
	}
	return nil
}

// Scan visits matching records in key order.
func (m *MemoryStore) Scan(ctx context.Context, prefix string, fn func(Record) error) error {
	m.mu.Lock()
	recs := make([]Record, 0, len(m.items))
	for k, elem := range m.items {
		if strings.HasPrefix(k, prefix) {
			recs = append(recs, elem.Value.(Record))
		}
	}
	m.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Count returns how many keys start with prefix.
func (m *MemoryStore) Count(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
