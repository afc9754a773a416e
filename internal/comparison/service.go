package comparison

import (
	"context"

	"github.com/raglab/raglab/internal/recorder"
)

// Lister fetches executions for aggregation.
type Lister interface {
	List(ctx context.Context, f recorder.Filter) ([]*recorder.Execution, error)
}

// Service answers comparison requests. Each call is stateless: it
// fetches a fresh snapshot of the matching executions and aggregates
// them, so overlapping dashboard polls never observe shared state.
type Service struct {
	lister Lister
}

// NewService creates a new comparison service.
func NewService(lister Lister) *Service {
	return &Service{lister: lister}
}

// Compare fetches executions matching the filter and aggregates them.
// Limit and offset are ignored: aggregation always spans the full
// matching set.
func (s *Service) Compare(ctx context.Context, f recorder.Filter) (*Result, error) {
	fetch := f
	fetch.Limit = 0
	fetch.Offset = 0

	executions, err := s.lister.List(ctx, fetch)
	if err != nil {
		return nil, err
	}

	return Compare(executions, f), nil
}
