// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs single-node deployments and tests.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]Versioned
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]Versioned),
	}
}

func (m *Memory) Create(_ context.Context, code string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[code]; exists {
		return ErrExists
	}
	m.rooms[code] = Versioned{Data: clone(data), Version: 1}
	return nil
}

func (m *Memory) Load(_ context.Context, code string) (Versioned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, exists := m.rooms[code]
	if !exists {
		return Versioned{}, ErrNotFound
	}
	return Versioned{Data: clone(v.Data), Version: v.Version}, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, code string, version int64, data []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.rooms[code]
	if !exists {
		return 0, ErrNotFound
	}
	if cur.Version != version {
		return 0, ErrConflict
	}
	next := Versioned{Data: clone(data), Version: version + 1}
	m.rooms[code] = next
	return next.Version, nil
}

func (m *Memory) Delete(_ context.Context, code string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.rooms[code]
	if !exists {
		return nil
	}
	if cur.Version != version {
		return ErrConflict
	}
	delete(m.rooms, code)
	return nil
}

func (m *Memory) Codes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
