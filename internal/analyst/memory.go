package analyst

import (
	"context"
	"sort"
	"sync"

	"github.com/raglab/raglab/internal/pkg/errors"
)

// MemoryStorage keeps analyses in memory (for testing).
type MemoryStorage struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		analyses: make(map[string]*Analysis),
	}
}

func (m *MemoryStorage) Insert(ctx context.Context, a *Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to keep stored records immutable
	stored := *a
	m.analyses[a.ID] = &stored
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) (*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.analyses[id]
	if !ok {
		return nil, errors.NotFoundError("analysis")
	}

	result := *a
	return &result, nil
}

func (m *MemoryStorage) List(ctx context.Context, f Filter) ([]*Analysis, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Analysis
	for _, a := range m.analyses {
		if f.Matches(a) {
			result := *a
			matched = append(matched, &result)
		}
	}

	// Most recent first; ties broken by id for determinism
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[id]; !ok {
		return errors.NotFoundError("analysis")
	}
	delete(m.analyses, id)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
