package prefstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryStore keeps the preference in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	id  string
	set bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.set, nil
}

func (m *MemoryStore) Set(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("preferred camera id must not be empty")
	}
	m.mu.Lock()
	m.id, m.set = id, true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.id, m.set = "", false
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
