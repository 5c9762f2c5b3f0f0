package extstate

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and for hosts that feed state
// directly instead of through the ExtState file.
type MemStore struct {
	mu       sync.RWMutex
	sections map[string]map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sections: make(map[string]map[string]string)}
}

// Get returns the value for a single key, or "" when absent.
func (m *MemStore) Get(ctx context.Context, section, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sections[section][key], nil
}

// Section returns a copy of all keys in a section.
func (m *MemStore) Section(ctx context.Context, section string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make(map[string]string, len(m.sections[section]))
	for k, v := range m.sections[section] {
		values[k] = v
	}
	return values, nil
}

// Set writes a single key.
func (m *MemStore) Set(ctx context.Context, section, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sections[section] == nil {
		m.sections[section] = make(map[string]string)
	}
	m.sections[section][key] = value
	return nil
}

// SetSample is a test helper that writes a whole section at once.
func (m *MemStore) SetSample(section string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sections[section] == nil {
		m.sections[section] = make(map[string]string)
	}
	for k, v := range values {
		m.sections[section][k] = v
	}
}
