// Package rerank scores candidate chunks against a query so that
// over-retrieved results can be cut down to the most relevant few.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/errors"
)

// Scored is one reranked candidate: the index into the input document
// slice and its relevance score in [0, 1].
type Scored struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	// Rerank scores the documents against the query and returns the
	// topN most relevant, best first, with the token usage spent.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Scored, llm.Usage, error)
}

// LLMReranker judges relevance with a single batched generation call
// that returns JSON scores, standing in for a managed rerank API.
type LLMReranker struct {
	provider llm.Provider
}

// NewLLMReranker creates a reranker backed by the given provider.
func NewLLMReranker(provider llm.Provider) *LLMReranker {
	return &LLMReranker{provider: provider}
}

const rerankSystem = "You are a relevance judge. You respond only with JSON."

func (r *LLMReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Scored, llm.Usage, error) {
	var usage llm.Usage
	if len(documents) == 0 {
		return nil, usage, nil
	}

	temperature := float32(0.0)
	result, err := r.provider.Generate(ctx, llm.GenerateRequest{
		System:          rerankSystem,
		Prompt:          buildPrompt(query, documents),
		Temperature:     &temperature,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return nil, usage, err
	}
	usage = result.Usage

	scored, err := parseScores(result.Text, len(documents))
	if err != nil {
		return nil, usage, errors.LLMError("parsing rerank scores", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, usage, nil
}

func buildPrompt(query string, documents []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score each document's relevance to the query from 0.0 (irrelevant) to 1.0 (directly answers it).\n\nQUERY: %s\n\n", query)
	for i, doc := range documents {
		fmt.Fprintf(&b, "DOCUMENT %d:\n%s\n\n", i, doc)
	}
	b.WriteString(`Respond with a JSON array, one entry per document, like:
[{"index": 0, "score": 0.8}, {"index": 1, "score": 0.2}]

JSON:`)
	return b.String()
}

// parseScores extracts the JSON array from the response, tolerating
// surrounding prose and code fences. Entries with out-of-range indexes
// are dropped; scores are clamped to [0, 1].
func parseScores(response string, numDocs int) ([]Scored, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var raw []Scored
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decoding scores: %w", err)
	}

	seen := make(map[int]bool, len(raw))
	scored := make([]Scored, 0, len(raw))
	for _, s := range raw {
		if s.Index < 0 || s.Index >= numDocs || seen[s.Index] {
			continue
		}
		seen[s.Index] = true
		if s.Score < 0 {
			s.Score = 0
		}
		if s.Score > 1 {
			s.Score = 1
		}
		scored = append(scored, s)
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("no usable scores in response")
	}
	return scored, nil
}
