// Package llm provides text generation and embedding via the Gemini API.
package llm

import (
	"context"
)

// Usage reports token consumption for a generation call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// GenerateRequest holds parameters for a generation call.
type GenerateRequest struct {
	// System is the system instruction (optional).
	System string

	// Prompt is the user prompt.
	Prompt string

	// Temperature overrides the client default when non-nil.
	Temperature *float32

	// MaxOutputTokens overrides the client default when > 0.
	MaxOutputTokens int32
}

// GenerateResult is the outcome of a generation call.
type GenerateResult struct {
	Text  string
	Usage Usage
}

// Provider defines the LLM operations used by the technique pipelines.
type Provider interface {
	// Generate produces text for a prompt.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Embed produces an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch produces embedding vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
