package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type memRow struct {
	value   []byte
	version uint64
}

// MemStore is an in-memory, thread-safe Store implementation with the same
// optimistic commit validation as PostgresStore. It is primarily useful for
// testing and for single-process deployments that do not require durable
// persistence across restarts.
type MemStore struct {
	mu   sync.RWMutex
	rows map[string]memRow
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[string]memRow)}
}

// Begin implements Store.
func (s *MemStore) Begin(_ context.Context) (Tx, error) {
	return &memTx{
		store:  s,
		reads:  make(map[string]uint64),
		writes: make(map[string][]byte),
	}, nil
}

type memTx struct {
	store  *MemStore
	reads  map[string]uint64 // key → version observed; 0 = absent
	writes map[string][]byte
	done   bool
}

// Get implements Tx.
func (t *memTx) Get(_ context.Context, key string) ([]byte, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	row, ok := t.store.rows[key]
	if !ok {
		t.reads[key] = 0
		return nil, nil
	}
	t.reads[key] = row.version
	cp := make([]byte, len(row.value))
	copy(cp, row.value)
	return cp, nil
}

// Has implements Tx.
func (t *memTx) Has(ctx context.Context, key string) (bool, error) {
	v, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Put implements Tx.
func (t *memTx) Put(_ context.Context, key string, value []byte) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	t.writes[key] = cp
	return nil
}

// Query implements Tx. It scans the committed rows and matches JSON string
// fields against the selector.
func (t *memTx) Query(_ context.Context, selector map[string]string) (Iterator, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	it := &memIterator{pos: -1}
	for key, row := range t.store.rows {
		if matchSelector(row.value, selector) {
			cp := make([]byte, len(row.value))
			copy(cp, row.value)
			it.keys = append(it.keys, key)
			it.values = append(it.values, cp)
		}
	}
	return it, nil
}

// Commit implements Tx.
func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for key, observed := range t.reads {
		var current uint64
		if row, ok := t.store.rows[key]; ok {
			current = row.version
		}
		if current != observed {
			return ErrConflict
		}
	}

	for key, value := range t.writes {
		next := t.store.rows[key].version + 1
		t.store.rows[key] = memRow{value: value, version: next}
	}
	return nil
}

// Discard implements Tx.
func (t *memTx) Discard() {
	t.done = true
}

// matchSelector reports whether every selector field appears in the JSON
// document with the exact string value.
func matchSelector(doc []byte, selector map[string]string) bool {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false
	}
	for name, want := range selector {
		got, ok := fields[name].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

type memIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *memIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Key() string   { return it.keys[it.pos] }
func (it *memIterator) Value() []byte { return it.values[it.pos] }
func (it *memIterator) Err() error    { return nil }
func (it *memIterator) Close()        {}
