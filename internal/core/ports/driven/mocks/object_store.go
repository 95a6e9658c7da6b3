package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// MockObjectStore is a mock implementation of ObjectStore for testing
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Custom behavior hooks (optional)
	DownloadFn func(key string) ([]byte, error)
}

// NewMockObjectStore creates a new MockObjectStore
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string][]byte),
	}
}

// Put seeds an object under key.
func (m *MockObjectStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *MockObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if m.DownloadFn != nil {
		return m.DownloadFn(key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *MockObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}
