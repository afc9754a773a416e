package llm

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// GenerationModel is the model used for text generation.
	GenerationModel string

	// EmbeddingModel is the model used for embeddings.
	EmbeddingModel string

	// Temperature is the default sampling temperature.
	Temperature float32

	// MaxOutputTokens is the default generation cap.
	MaxOutputTokens int32

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int

	// RequestsPerMinute throttles outgoing calls (0 = unlimited).
	RequestsPerMinute int
}

// GeminiClient implements Provider using the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	config  GeminiConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewGeminiClient creates a new Gemini-backed provider.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log *logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.ValidationError("gemini api key is required")
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if log == nil {
		log = logger.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.LLMError("failed to create gemini client", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &GeminiClient{
		client:  client,
		config:  cfg,
		limiter: limiter,
		log:     log,
	}, nil
}

// Generate produces text for a prompt, retrying transient failures with backoff.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.CodeTimeout, "rate limiter wait", err)
	}

	temp := c.config.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	maxTokens := c.config.MaxOutputTokens
	if req.MaxOutputTokens > 0 {
		maxTokens = req.MaxOutputTokens
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temp),
		MaxOutputTokens: maxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.config.GenerationModel, contents, cfg)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				break
			}
			c.log.Warn("generation failed, retrying",
				"model", c.config.GenerationModel,
				"attempt", attempt+1,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.CodeTimeout, "generation cancelled", ctx.Err())
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
			continue
		}

		result := &GenerateResult{Text: resp.Text()}
		if resp.UsageMetadata != nil {
			result.Usage = Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		return result, nil
	}

	return nil, errors.LLMError("generation failed", lastErr)
}

// Embed produces an embedding vector for a single text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch produces embedding vectors for multiple texts.
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.CodeTimeout, "rate limiter wait", err)
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		resp, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel, contents, nil)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				break
			}
			c.log.Warn("embedding failed, retrying",
				"model", c.config.EmbeddingModel,
				"attempt", attempt+1,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.CodeTimeout, "embedding cancelled", ctx.Err())
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
			continue
		}

		if len(resp.Embeddings) != len(texts) {
			return nil, errors.LLMError("embedding count mismatch", nil)
		}

		vectors := make([][]float32, 0, len(resp.Embeddings))
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
		return vectors, nil
	}

	return nil, errors.LLMError("embedding failed", lastErr)
}

// isRetryable reports whether a provider error is worth retrying.
func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "UNAVAILABLE") ||
		strings.Contains(msg, "DEADLINE_EXCEEDED")
}
