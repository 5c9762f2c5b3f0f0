package vocab

import (
	"context"
	"sync"

	"github.com/normanking/reavoice/pkg/types"
)

// Store supplies vocabulary items to the matcher. Implementations must
// reflect live edits: the matcher reads on every call and never caches.
type Store interface {
	GetAll(ctx context.Context) ([]types.VocabularyItem, error)
}

// MemStore is an in-memory Store for tests and for hosts that manage
// their vocabulary elsewhere.
type MemStore struct {
	mu    sync.RWMutex
	items []types.VocabularyItem
}

// NewMemStore creates a MemStore with the given items.
func NewMemStore(items ...types.VocabularyItem) *MemStore {
	return &MemStore{items: items}
}

// GetAll returns a copy of the current items.
func (m *MemStore) GetAll(ctx context.Context) ([]types.VocabularyItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.VocabularyItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

// Add appends an item.
func (m *MemStore) Add(item types.VocabularyItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

// Replace swaps the whole item set.
func (m *MemStore) Replace(items []types.VocabularyItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}
