package technique

import (
	"context"
	"strings"
	"time"

	"github.com/raglab/raglab/internal/config"
	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/qdrant"
	"github.com/raglab/raglab/internal/recorder"
	"github.com/raglab/raglab/internal/rerank"
)

// Searcher performs dense vector search over the chunk collection.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]qdrant.SearchResult, error)
}

// QdrantSearcher adapts the Qdrant client to the Searcher interface,
// pinning the collection all pipelines search against.
type QdrantSearcher struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantSearcher creates a searcher over one collection.
func NewQdrantSearcher(client *qdrant.Client, collection string) *QdrantSearcher {
	return &QdrantSearcher{client: client, collection: collection}
}

func (s *QdrantSearcher) Search(ctx context.Context, vector []float32, limit int) ([]qdrant.SearchResult, error) {
	return s.client.Search(ctx, s.collection, qdrant.SearchRequest{
		Vector:      vector,
		Limit:       uint64(limit),
		WithPayload: true,
	})
}

// Options are per-run overrides supplied by the caller.
type Options struct {
	// TopK is the number of sources to return. Zero means the
	// configured default.
	TopK int

	// Temperature overrides the generation temperature when non-nil.
	Temperature *float32

	// MaxOutputTokens overrides the answer length limit when > 0.
	MaxOutputTokens int32
}

// Outcome is the result of running one technique over one query.
type Outcome struct {
	Technique       string
	Answer          string
	Sources         []recorder.Source
	Usage           llm.Usage
	CostUSD         float64
	LatencyMs       float64
	ChunksRetrieved int
	ChunksUsed      int

	// Details carries technique-specific trace data: the HyDE
	// hypothesis, fusion query variations, the adaptive routing
	// decision, and so on.
	Details map[string]any
}

// Metrics converts the outcome into the recorded metric set. Quality
// scores are attached separately by the evaluator.
func (o *Outcome) Metrics() recorder.Metrics {
	return recorder.Metrics{
		LatencyMs:       recorder.Float64Ptr(o.LatencyMs),
		InputTokens:     recorder.IntPtr(o.Usage.InputTokens),
		OutputTokens:    recorder.IntPtr(o.Usage.OutputTokens),
		TotalTokens:     recorder.IntPtr(o.Usage.TotalTokens),
		CostUSD:         recorder.Float64Ptr(o.CostUSD),
		ChunksRetrieved: recorder.IntPtr(o.ChunksRetrieved),
		ChunksUsed:      recorder.IntPtr(o.ChunksUsed),
	}
}

// Runner executes technique pipelines against the shared collaborators.
type Runner struct {
	provider llm.Provider
	search   Searcher
	reranker rerank.Reranker
	cfg      config.RAGConfig
	model    string
	log      *logger.Logger
}

// NewRunner creates a pipeline runner. model is the generation model
// name, used for cost accounting.
func NewRunner(provider llm.Provider, search Searcher, reranker rerank.Reranker, cfg config.RAGConfig, model string, log *logger.Logger) *Runner {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.RerankMultiplier <= 0 {
		cfg.RerankMultiplier = 4
	}
	if cfg.FusionVariations <= 0 {
		cfg.FusionVariations = 3
	}
	if cfg.MaxSubQueries <= 0 {
		cfg.MaxSubQueries = 3
	}
	if cfg.MaxAgentSteps <= 0 {
		cfg.MaxAgentSteps = 3
	}
	return &Runner{
		provider: provider,
		search:   search,
		reranker: reranker,
		cfg:      cfg,
		model:    model,
		log:      log,
	}
}

// Run executes one technique over one query and assembles the outcome
// with latency, token usage, and cost.
func (r *Runner) Run(ctx context.Context, technique, query string, opts Options) (*Outcome, error) {
	if !IsKnown(technique) {
		return nil, errors.ValidationError("unknown technique: " + technique)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.ValidationError("query must not be empty")
	}
	if opts.TopK <= 0 {
		opts.TopK = r.cfg.DefaultTopK
	}

	start := time.Now()
	out := &Outcome{
		Technique: technique,
		Details:   map[string]any{},
	}

	var err error
	switch technique {
	case Baseline:
		err = r.runBaseline(ctx, query, opts, out)
	case HyDE:
		err = r.runHyDE(ctx, query, opts, out)
	case Reranking:
		err = r.runReranking(ctx, query, opts, out)
	case Fusion:
		err = r.runFusion(ctx, query, opts, out)
	case SubQuery:
		err = r.runSubQuery(ctx, query, opts, out)
	case Graph:
		err = r.runGraph(ctx, query, opts, out)
	case Agentic:
		err = r.runAgentic(ctx, query, opts, out)
	case Adaptive:
		err = r.runAdaptive(ctx, query, opts, out)
	}
	if err != nil {
		return nil, err
	}

	out.LatencyMs = float64(time.Since(start)) / float64(time.Millisecond)
	out.CostUSD = llm.Cost(r.model, out.Usage)
	if out.ChunksUsed == 0 {
		out.ChunksUsed = len(out.Sources)
	}
	return out, nil
}

// generate runs one generation call and accumulates its token usage
// into the outcome.
func (r *Runner) generate(ctx context.Context, out *Outcome, req llm.GenerateRequest) (string, error) {
	result, err := r.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	out.Usage.Add(result.Usage)
	return strings.TrimSpace(result.Text), nil
}

// retrieve embeds the text and searches the chunk collection.
func (r *Runner) retrieve(ctx context.Context, text string, limit int) ([]qdrant.SearchResult, error) {
	vector, err := r.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.search.Search(ctx, vector, limit)
}

// answer generates the final response from the assembled context. The
// same prompt is used by every technique so that quality differences
// come from retrieval alone.
func (r *Runner) answer(ctx context.Context, out *Outcome, query string, opts Options) error {
	text, err := r.generate(ctx, out, llm.GenerateRequest{
		System:          answerSystem,
		Prompt:          answerPrompt(buildContext(out.Sources), query),
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxOutputTokens,
	})
	if err != nil {
		return err
	}
	out.Answer = text
	return nil
}

func buildContext(sources []recorder.Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n\n")
}

// toSources converts search results into recorded sources, preserving
// retrieval order.
func toSources(results []qdrant.SearchResult) []recorder.Source {
	sources := make([]recorder.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, recorder.Source{
			Content:    r.Payload.Content,
			Score:      float64(r.Score),
			Document:   r.Payload.Document,
			ChunkIndex: r.Payload.ChunkIndex,
		})
	}
	return sources
}
