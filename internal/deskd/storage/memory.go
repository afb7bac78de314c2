package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps documents in process memory. Used by tests and by
// throwaway deployments with storage.type=memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Write(_ context.Context, key string, content []byte, _ string) (string, error) {
	ref := SuffixedKey(key)
	data := make([]byte, len(content))
	copy(data, content)

	m.mu.Lock()
	m.objects[ref] = data
	m.mu.Unlock()
	return ref, nil
}

func (m *MemoryStorage) Read(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[ref]
	if !ok {
		return nil, notFound(ref)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStorage) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[ref]; !ok {
		return notFound(ref)
	}
	delete(m.objects, ref)
	return nil
}

func (m *MemoryStorage) Type() string { return "memory" }

// Len returns the number of stored documents
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
