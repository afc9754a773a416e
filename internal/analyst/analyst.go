// Package analyst answers natural-language questions about recorded
// technique comparisons with the LLM, and persists every answer for
// later review.
package analyst

import (
	"context"
	"time"
)

// Analysis is one saved question with the generated answer.
type Analysis struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Response   string    `json:"response"`
	DurationMs float64   `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows an analysis listing. Date bounds are inclusive.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Matches reports whether the analysis falls inside the date bounds.
func (f Filter) Matches(a *Analysis) bool {
	if f.From != nil && a.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && a.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Storage persists analyses.
type Storage interface {
	// Insert durably appends an analysis.
	Insert(ctx context.Context, a *Analysis) error

	// Get returns the analysis with the given id.
	Get(ctx context.Context, id string) (*Analysis, error)

	// List returns analyses matching the filter, ordered by created_at
	// descending, plus the total match count before pagination.
	List(ctx context.Context, f Filter) ([]*Analysis, int, error)

	// Delete removes the analysis with the given id.
	Delete(ctx context.Context, id string) error

	// Close releases storage resources.
	Close() error
}
