package moderation

import (
	"context"
	"errors"
	"sync"
)

var errDiskFull = errors.New("disk full")

// memDocs is an in-memory DocumentStore. Setting failSaves makes every Save fail.
type memDocs struct {
	mu        sync.Mutex
	documents map[string][]byte
	failSaves bool
	failLoads bool
}

func newMemDocs() *memDocs {
	return &memDocs{documents: make(map[string][]byte)}
}

func (m *memDocs) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoads {
		return nil, errDiskFull
	}
	return m.documents[name], nil
}

func (m *memDocs) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errDiskFull
	}
	m.documents[name] = append([]byte(nil), data...)
	return nil
}

func (m *memDocs) setFailSaves(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = fail
}

func (m *memDocs) put(name, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[name] = []byte(data)
}
