package analyst

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/recorder"
)

// DefaultQuestion is asked when a request carries no question of its own.
const DefaultQuestion = "Which technique performs best overall, and what are the trade-offs between the top candidates?"

// Question length bounds, in runes.
const (
	minQuestionLen = 5
	maxQuestionLen = 1000
)

const noDataResponse = "No execution data available for analysis. Run some queries first."

const analystSystem = "You are a RAG technique analyst. Answer questions about measured " +
	"technique performance using only the data provided. Be concise and concrete."

// ComparisonSource provides the aggregated data the analyst reasons over.
type ComparisonSource interface {
	Compare(ctx context.Context, f recorder.Filter) (*comparison.Result, error)
}

// Service answers questions over the comparison data and persists the
// resulting analyses.
type Service struct {
	provider llm.Provider
	comparer ComparisonSource
	storage  Storage
	log      *logger.Logger
}

// NewService creates the analyst service.
func NewService(provider llm.Provider, comparer ComparisonSource, storage Storage, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		provider: provider,
		comparer: comparer,
		storage:  storage,
		log:      log,
	}
}

// Analyze answers the question over the current unfiltered comparison
// and saves the result. An empty question asks for the overall
// comparative analysis.
func (s *Service) Analyze(ctx context.Context, question string) (*Analysis, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = DefaultQuestion
	} else if n := utf8.RuneCountInString(question); n < minQuestionLen || n > maxQuestionLen {
		return nil, errors.ValidationError(fmt.Sprintf(
			"question must be between %d and %d characters", minQuestionLen, maxQuestionLen))
	}

	start := time.Now()
	result, err := s.comparer.Compare(ctx, recorder.Filter{})
	if err != nil {
		return nil, err
	}

	var response string
	if result == nil || result.NoData {
		// Nothing to reason over; skip the model entirely.
		response = noDataResponse
	} else {
		response = s.generate(ctx, question, result)
	}

	analysis := &Analysis{
		ID:         uuid.NewString(),
		Question:   question,
		Response:   response,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.storage.Insert(ctx, analysis); err != nil {
		return nil, err
	}

	s.log.Info("analysis saved", "id", analysis.ID, "duration_ms", analysis.DurationMs)
	return analysis, nil
}

// Get returns a saved analysis by id.
func (s *Service) Get(ctx context.Context, id string) (*Analysis, error) {
	return s.storage.Get(ctx, id)
}

// List returns saved analyses, newest first, with the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]*Analysis, int, error) {
	return s.storage.List(ctx, f)
}

// Delete removes a saved analysis by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.storage.Delete(ctx, id)
}

// generate asks the model. A generation failure degrades to the plain
// rankings summary instead of failing the request.
func (s *Service) generate(ctx context.Context, question string, result *comparison.Result) string {
	temperature := float32(0.3)
	gen, err := s.provider.Generate(ctx, llm.GenerateRequest{
		System:          analystSystem,
		Prompt:          buildPrompt(question, result),
		Temperature:     &temperature,
		MaxOutputTokens: 1500,
	})
	if err != nil {
		s.log.Warn("analysis generation failed, falling back to rankings summary", "error", err)
		return fallbackSummary(result)
	}
	return strings.TrimSpace(gen.Text)
}

// rankingOrder fixes the presentation order of ranking categories in
// prompts and fallback summaries.
var rankingOrder = []string{
	comparison.RankFastest,
	comparison.RankCheapest,
	comparison.RankMostFaithful,
	comparison.RankMostRelevant,
	comparison.RankBestPrecision,
	comparison.RankBestRecall,
	comparison.RankBestRetrieval,
}

var rankingLabels = map[string]string{
	comparison.RankFastest:       "Fastest",
	comparison.RankCheapest:      "Cheapest",
	comparison.RankMostFaithful:  "Most faithful",
	comparison.RankMostRelevant:  "Most relevant",
	comparison.RankBestPrecision: "Best precision",
	comparison.RankBestRecall:    "Best recall",
	comparison.RankBestRetrieval: "Best retrieval",
}

// buildPrompt renders the comparison rows and rankings as the grounding
// context, followed by the question.
func buildPrompt(question string, result *comparison.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Measured technique performance (%d executions):\n\n", result.TotalExecutions)

	for _, row := range result.Rows {
		fmt.Fprintf(&b,
			"%s: executions=%d latency_ms=%s cost_usd=%s faithfulness=%s relevancy=%s precision=%s recall=%s chunks=%s top_score=%s\n",
			row.Technique, row.ExecutionCount,
			fmtAvg(row.AvgLatencyMs), fmtAvg(row.AvgCostUSD),
			fmtAvg(row.AvgFaithfulness), fmtAvg(row.AvgAnswerRelevancy),
			fmtAvg(row.AvgContextPrecision), fmtAvg(row.AvgContextRecall),
			fmtAvg(row.AvgChunksRetrieved), fmtAvg(row.AvgTop3Mean),
		)
	}

	if len(result.Rankings) > 0 {
		b.WriteString("\nRankings (best first):\n")
		for _, cat := range rankingOrder {
			if ranked, ok := result.Rankings[cat]; ok && len(ranked) > 0 {
				fmt.Fprintf(&b, "%s: %s\n", rankingLabels[cat], strings.Join(ranked, " > "))
			}
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer using only the data above. Treat missing metrics as unknown rather than guessing.")
	return b.String()
}

// fallbackSummary renders the rankings as plain text when the model is
// unavailable.
func fallbackSummary(result *comparison.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated analysis unavailable. Summary of %d executions across %d techniques.\n",
		result.TotalExecutions, len(result.Rows))
	for _, cat := range rankingOrder {
		if ranked, ok := result.Rankings[cat]; ok && len(ranked) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", rankingLabels[cat], strings.Join(ranked, " > "))
		}
	}
	return strings.TrimSpace(b.String())
}

// fmtAvg renders a nullable average; null stays visibly unknown.
func fmtAvg(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
