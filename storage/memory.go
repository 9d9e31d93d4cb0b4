package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. A positive quota limits the
// size of a single value.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int
}

func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}, quota: quota}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if m.quota > 0 && len(value) > m.quota {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
