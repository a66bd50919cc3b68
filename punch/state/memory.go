package state

import (
	"context"
	"sync"

	"fieldops.dev/punchclock/punch/models"
)

// MemoryStore holds the record in process memory. It does not survive a
// restart and is meant for tests and dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*models.OpenPunch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, nil
	}
	return decode(m.data)
}

func (m *MemoryStore) Save(ctx context.Context, record models.OpenPunch) error {
	data, err := encode(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
