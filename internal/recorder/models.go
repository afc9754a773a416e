// Package recorder persists one record per RAG query execution.
// Executions form an append-only log: created once, immutable, and
// removed only by explicit purge.
package recorder

import (
	"strings"
	"time"
)

// Execution is one persisted RAG query invocation.
type Execution struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Technique string    `json:"technique"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Metrics   Metrics   `json:"metrics"`
	CreatedAt time.Time `json:"created_at"`
}

// Source is one retrieved chunk backing an answer. Ordering inside an
// execution reflects retrieval rank, not necessarily score order.
type Source struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`

	// Document is the origin document name.
	Document string `json:"document"`

	// ChunkIndex is the chunk position within the document.
	ChunkIndex int `json:"chunk_index"`

	// OriginalScore is the pre-rerank score, set only by techniques
	// that rescore their candidates. Score holds the final
	// (post-rerank) value in that case.
	OriginalScore *float64 `json:"original_score,omitempty"`
}

// Metrics holds the per-execution measurements. Every field is
// independently nullable: nil means "not computed", which is distinct
// from a legitimate zero value.
type Metrics struct {
	LatencyMs        *float64 `json:"latency_ms,omitempty"`
	InputTokens      *int     `json:"input_tokens,omitempty"`
	OutputTokens     *int     `json:"output_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	CostUSD          *float64 `json:"cost_usd,omitempty"`
	ChunksRetrieved  *int     `json:"chunks_retrieved,omitempty"`
	ChunksUsed       *int     `json:"chunks_used,omitempty"`
	Faithfulness     *float64 `json:"faithfulness,omitempty"`
	AnswerRelevancy  *float64 `json:"answer_relevancy,omitempty"`
	ContextPrecision *float64 `json:"context_precision,omitempty"`
	ContextRecall    *float64 `json:"context_recall,omitempty"`
}

// Filter selects executions for listing and purging. Zero-value fields
// are ignored. Date bounds are inclusive.
type Filter struct {
	Techniques []string   `json:"techniques,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// Matches reports whether an execution satisfies the filter's
// technique and date constraints (limit/offset are applied elsewhere).
func (f Filter) Matches(e *Execution) bool {
	if len(f.Techniques) > 0 {
		found := false
		for _, t := range f.Techniques {
			if e.Technique == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}

	return true
}

// ValidateQuery checks the query text of a new execution.
func ValidateQuery(query string) bool {
	return strings.TrimSpace(query) != ""
}

// Float64Ptr returns a pointer to v. Convenience for building Metrics.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v. Convenience for building Metrics.
func IntPtr(v int) *int { return &v }
