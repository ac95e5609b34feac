package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryStore keeps the items tree in process. It backs tests and local
// development from an exported JSON file.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]json.RawMessage)}
}

// LoadMemoryStore reads a JSON object of key to item, as exported from the
// database root node.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	m := NewMemoryStore()
	for k, v := range records {
		m.records[k] = v
	}
	return m, nil
}

// Put stores v, encoded as JSON, under key.
func (m *MemoryStore) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.records[key] = data
	m.mu.Unlock()
	return nil
}

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	v, ok := m.records[key]
	m.mu.RUnlock()
	if !ok || !validKey(key) || valueRank(v) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return Record{Key: key, Value: v}, nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for k, v := range m.records {
		records = append(records, Record{Key: k, Value: v})
	}
	m.mu.RUnlock()

	sortRecords(records, q.OrderBy)
	return applyQuery(records, q), nil
}
