package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/logger"
)

// Evaluator judges answer quality with batched LLM calls. Metric
// failures degrade to nil scores; evaluation never fails a pipeline.
type Evaluator struct {
	provider llm.Provider
	log      *logger.Logger
}

// NewEvaluator creates an evaluator backed by the given provider.
func NewEvaluator(provider llm.Provider, log *logger.Logger) *Evaluator {
	return &Evaluator{provider: provider, log: log}
}

// Evaluate judges one execution. Each metric is computed independently
// so a single failed judge call only blanks its own score.
func (e *Evaluator) Evaluate(ctx context.Context, query, answer string, contexts []string) *Scores {
	scores := &Scores{}
	if strings.TrimSpace(answer) == "" {
		return scores
	}
	contextText := strings.Join(contexts, "\n\n")

	if v, err := e.faithfulness(ctx, answer, contextText); err != nil {
		e.log.Warn("faithfulness evaluation failed", "error", err)
	} else {
		scores.Faithfulness = v
	}

	if v, err := e.answerRelevancy(ctx, query, answer); err != nil {
		e.log.Warn("answer relevancy evaluation failed", "error", err)
	} else {
		scores.AnswerRelevancy = v
	}

	if len(contexts) > 0 {
		if v, err := e.contextPrecision(ctx, query, contexts); err != nil {
			e.log.Warn("context precision evaluation failed", "error", err)
		} else {
			scores.ContextPrecision = v
		}

		if v, err := e.contextRecall(ctx, answer, contextText); err != nil {
			e.log.Warn("context recall evaluation failed", "error", err)
		} else {
			scores.ContextRecall = v
		}
	}

	return scores
}

// faithfulness extracts the answer's claims and verifies each against
// the context in one batched call.
func (e *Evaluator) faithfulness(ctx context.Context, answer, contextText string) (*float64, error) {
	var claims []string
	if err := e.judge(ctx, claimsPrompt(answer), &claims); err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, nil
	}

	var supported []bool
	if err := e.judge(ctx, verifyClaimsPrompt(claims, contextText), &supported); err != nil {
		return nil, err
	}
	if len(supported) != len(claims) {
		return nil, fmt.Errorf("got %d verdicts for %d claims", len(supported), len(claims))
	}

	score := supportRatio(supported)
	return &score, nil
}

// answerRelevancy generates questions the answer would respond to and
// measures their similarity to the original question.
func (e *Evaluator) answerRelevancy(ctx context.Context, query, answer string) (*float64, error) {
	var questions []string
	if err := e.judge(ctx, reverseQuestionsPrompt(answer, 3), &questions); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	var similarities []float64
	if err := e.judge(ctx, questionSimilarityPrompt(query, questions), &similarities); err != nil {
		return nil, err
	}
	if len(similarities) == 0 {
		return nil, fmt.Errorf("no similarity scores returned")
	}

	for i := range similarities {
		similarities[i] = clamp01(similarities[i])
	}
	score := meanScores(similarities)
	return &score, nil
}

// contextPrecision judges each chunk's relevance and computes Average
// Precision over the retrieval order.
func (e *Evaluator) contextPrecision(ctx context.Context, query string, contexts []string) (*float64, error) {
	var relevant []bool
	if err := e.judge(ctx, chunkRelevancePrompt(query, contexts), &relevant); err != nil {
		return nil, err
	}
	if len(relevant) != len(contexts) {
		return nil, fmt.Errorf("got %d verdicts for %d chunks", len(relevant), len(contexts))
	}

	score := averagePrecision(relevant)
	return &score, nil
}

// contextRecall uses context utilization as the recall proxy: how much
// of the answer's information comes from the retrieved context.
func (e *Evaluator) contextRecall(ctx context.Context, answer, contextText string) (*float64, error) {
	var utilization float64
	if err := e.judge(ctx, utilizationPrompt(answer, contextText), &utilization); err != nil {
		return nil, err
	}

	score := clamp01(utilization)
	return &score, nil
}

// judge runs one low-temperature generation call and decodes the JSON
// value from the response into out.
func (e *Evaluator) judge(ctx context.Context, prompt string, out any) error {
	temperature := float32(0.1)
	result, err := e.provider.Generate(ctx, llm.GenerateRequest{
		System:          judgeSystem,
		Prompt:          prompt,
		Temperature:     &temperature,
		MaxOutputTokens: 2000,
	})
	if err != nil {
		return err
	}
	return decodeJSON(result.Text, out)
}

// decodeJSON extracts the first JSON value from an LLM response,
// tolerating code fences and surrounding prose.
func decodeJSON(response string, out any) error {
	response = strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(response), out); err == nil {
		return nil
	}

	start := strings.IndexAny(response, "[{0123456789.")
	if start < 0 {
		return fmt.Errorf("no JSON value in response")
	}
	candidate := response[start:]
	if end := lastValueEnd(candidate); end > 0 {
		candidate = candidate[:end]
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return fmt.Errorf("decoding judge response: %w", err)
	}
	return nil
}

// lastValueEnd finds the end of the leading JSON value: the matching
// closing bracket for arrays and objects, or the numeric run for bare
// numbers.
func lastValueEnd(s string) int {
	switch s[0] {
	case '[':
		if i := strings.LastIndex(s, "]"); i >= 0 {
			return i + 1
		}
	case '{':
		if i := strings.LastIndex(s, "}"); i >= 0 {
			return i + 1
		}
	default:
		for i, r := range s {
			if (r < '0' || r > '9') && r != '.' && r != '-' {
				return i
			}
		}
		return len(s)
	}
	return 0
}
