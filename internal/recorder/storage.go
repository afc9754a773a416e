package recorder

import (
	"context"
	"sort"
	"sync"

	"github.com/raglab/raglab/internal/pkg/errors"
)

// Storage is the interface for execution persistence.
type Storage interface {
	// Insert durably appends an execution.
	Insert(ctx context.Context, e *Execution) error

	// Get returns the execution with the given id.
	Get(ctx context.Context, id string) (*Execution, error)

	// List returns executions matching the filter, ordered by
	// created_at descending.
	List(ctx context.Context, f Filter) ([]*Execution, error)

	// Delete removes executions matching the filter and returns the
	// count deleted.
	Delete(ctx context.Context, f Filter) (int64, error)

	// Close releases storage resources.
	Close() error
}

// MemoryStorage keeps executions in memory (for testing).
type MemoryStorage struct {
	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		executions: make(map[string]*Execution),
	}
}

func (m *MemoryStorage) Insert(ctx context.Context, e *Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to keep stored records immutable
	stored := *e
	stored.Sources = append([]Source(nil), e.Sources...)
	m.executions[e.ID] = &stored
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) (*Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[id]
	if !ok {
		return nil, errors.NotFoundError("execution")
	}

	result := *e
	result.Sources = append([]Source(nil), e.Sources...)
	return &result, nil
}

func (m *MemoryStorage) List(ctx context.Context, f Filter) ([]*Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Execution
	for _, e := range m.executions {
		if f.Matches(e) {
			result := *e
			result.Sources = append([]Source(nil), e.Sources...)
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

	return paginate(matched, f.Limit, f.Offset), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for id, e := range m.executions {
		if f.Matches(e) {
			delete(m.executions, id)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func paginate(items []*Execution, limit, offset int) []*Execution {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
