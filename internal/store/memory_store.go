package store

import (
	"context"
	"fmt"
	"sync"
)

type memoryStore struct {
	records []Record
	ids     map[string]struct{}
	mu      sync.RWMutex
}

func NewMemoryStore() *memoryStore {
	return &memoryStore{
		ids: make(map[string]struct{}),
	}
}

func (m *memoryStore) Load(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.clone())
	}
	return out, nil
}

func (m *memoryStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKeyID, r.ID)
	}
	m.records = append(m.records, r.clone())
	m.ids[r.ID] = struct{}{}
	return nil
}
