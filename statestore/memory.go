package statestore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/c360/virtualsensor/errors"
)

// MemoryStore keeps state in a process-local map.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// OutputStream returns a writer that stores the value on Close.
func (m *MemoryStore) OutputStream(ctx context.Context, key string) (Writer, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return newBufferedWriter(ctx, func(_ context.Context, data []byte) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.values[key] = bytes.Clone(data)
		return nil
	}), nil
}

// InputStream returns a reader over a copy of the stored value.
func (m *MemoryStore) InputStream(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.values[key]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the stored keys.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}
