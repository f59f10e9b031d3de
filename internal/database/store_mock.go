package database

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MockStore)(nil)

// MockStore is a mock implementation of the Store interface for testing.
// Uses function fields to allow tests to inject custom behavior; when a field is nil
// the mock falls back to an in-memory map.
type MockStore struct {
	LoadFunc  func(ctx context.Context, name string) ([]byte, error)
	SaveFunc  func(ctx context.Context, name string, data []byte) error
	CloseFunc func() error

	mu        sync.Mutex
	documents map[string][]byte
	updated   map[string]time.Time
	saves     int
}

// NewMockStore creates a mock with an empty in-memory document map
func NewMockStore() *MockStore {
	return &MockStore{documents: make(map[string][]byte)}
}

func (m *MockStore) Load(ctx context.Context, name string) ([]byte, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.documents[name]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MockStore) Save(ctx context.Context, name string, data []byte) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, name, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.documents == nil {
		m.documents = make(map[string][]byte)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.documents[name] = stored
	if m.updated == nil {
		m.updated = make(map[string]time.Time)
	}
	m.updated[name] = time.Now()
	m.saves++
	return nil
}

func (m *MockStore) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated[name], nil
}

func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Saves returns how many in-memory saves succeeded
func (m *MockStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Document returns the raw in-memory document, if any
func (m *MockStore) Document(name string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.documents[name]
}
