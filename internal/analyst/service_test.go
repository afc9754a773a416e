package analyst

import (
	"context"
	"strings"
	"testing"

	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/recorder"
)

type stubProvider struct {
	text    string
	err     error
	calls   int
	lastReq llm.GenerateRequest
}

func (p *stubProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.GenerateResult{Text: p.text}, nil
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

type stubComparer struct {
	result *comparison.Result
	err    error
}

func (c *stubComparer) Compare(ctx context.Context, f recorder.Filter) (*comparison.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func comparisonFixture() *comparison.Result {
	return &comparison.Result{
		Rows: []comparison.Row{
			{Technique: "baseline", ExecutionCount: 4, AvgLatencyMs: recorder.Float64Ptr(900)},
			{Technique: "hyde", ExecutionCount: 2, AvgLatencyMs: recorder.Float64Ptr(450), AvgFaithfulness: recorder.Float64Ptr(0.91)},
		},
		Rankings: map[string][]string{
			comparison.RankFastest:      {"hyde", "baseline"},
			comparison.RankMostFaithful: {"hyde"},
		},
		TotalExecutions: 6,
	}
}

func newTestService(provider *stubProvider, comparer *stubComparer) (*Service, *MemoryStorage) {
	storage := NewMemoryStorage()
	return NewService(provider, comparer, storage, logger.New("error", "text")), storage
}

func TestAnalyze_GroundsPromptInComparisonData(t *testing.T) {
	provider := &stubProvider{text: "hyde is fastest and most faithful."}
	svc, _ := newTestService(provider, &stubComparer{result: comparisonFixture()})

	analysis, err := svc.Analyze(context.Background(), "which technique is fastest?")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if analysis.Response != "hyde is fastest and most faithful." {
		t.Errorf("unexpected response: %q", analysis.Response)
	}
	if analysis.Question != "which technique is fastest?" {
		t.Errorf("unexpected question: %q", analysis.Question)
	}
	if analysis.ID == "" || analysis.CreatedAt.IsZero() {
		t.Errorf("analysis missing id or created_at: %+v", analysis)
	}

	prompt := provider.lastReq.Prompt
	for _, want := range []string{
		"baseline: executions=4",
		"latency_ms=450.0000",
		"faithfulness=unknown",
		"Fastest: hyde > baseline",
		"which technique is fastest?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if provider.lastReq.Temperature == nil || *provider.lastReq.Temperature != 0.3 {
		t.Errorf("unexpected temperature: %v", provider.lastReq.Temperature)
	}
	if provider.lastReq.MaxOutputTokens != 1500 {
		t.Errorf("unexpected max output tokens: %d", provider.lastReq.MaxOutputTokens)
	}
}

func TestAnalyze_PersistsAnalysis(t *testing.T) {
	provider := &stubProvider{text: "answer"}
	svc, _ := newTestService(provider, &stubComparer{result: comparisonFixture()})

	analysis, err := svc.Analyze(context.Background(), "how do costs compare across techniques?")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	saved, err := svc.Get(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if saved.Question != analysis.Question || saved.Response != analysis.Response {
		t.Errorf("saved analysis diverges: %+v", saved)
	}
}

func TestAnalyze_EmptyQuestionUsesDefault(t *testing.T) {
	provider := &stubProvider{text: "overall hyde wins"}
	svc, _ := newTestService(provider, &stubComparer{result: comparisonFixture()})

	analysis, err := svc.Analyze(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if analysis.Question != DefaultQuestion {
		t.Errorf("expected default question, got %q", analysis.Question)
	}
	if !strings.Contains(provider.lastReq.Prompt, DefaultQuestion) {
		t.Error("default question not passed to the model")
	}
}

func TestAnalyze_QuestionLengthValidation(t *testing.T) {
	svc, storage := newTestService(&stubProvider{}, &stubComparer{result: comparisonFixture()})

	tests := []struct {
		name     string
		question string
	}{
		{"too short", "why?"},
		{"too long", strings.Repeat("x", 1001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.question)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if _, total, _ := storage.List(context.Background(), Filter{}); total != 0 {
		t.Errorf("rejected questions must not be persisted, found %d", total)
	}
}

func TestAnalyze_NoDataSkipsModel(t *testing.T) {
	provider := &stubProvider{text: "should not be used"}
	svc, _ := newTestService(provider, &stubComparer{result: &comparison.Result{
		Rows:     []comparison.Row{},
		Rankings: map[string][]string{},
		NoData:   true,
	}})

	analysis, err := svc.Analyze(context.Background(), "anything interesting?")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("model must not be called without data, got %d calls", provider.calls)
	}
	if !strings.Contains(analysis.Response, "No execution data") {
		t.Errorf("unexpected no-data response: %q", analysis.Response)
	}
}

func TestAnalyze_ModelFailureFallsBackToRankings(t *testing.T) {
	provider := &stubProvider{err: errors.LLMError("generation failed", nil)}
	svc, _ := newTestService(provider, &stubComparer{result: comparisonFixture()})

	analysis, err := svc.Analyze(context.Background(), "which technique should I use?")
	if err != nil {
		t.Fatalf("model failure must degrade, not error: %v", err)
	}
	if !strings.Contains(analysis.Response, "Fastest: hyde > baseline") {
		t.Errorf("fallback missing rankings summary: %q", analysis.Response)
	}
	if !strings.Contains(analysis.Response, "6 executions") {
		t.Errorf("fallback missing execution count: %q", analysis.Response)
	}
}

func TestAnalyze_CompareErrorPropagates(t *testing.T) {
	svc, _ := newTestService(&stubProvider{}, &stubComparer{err: errors.StoreError("store down", nil)})

	if _, err := svc.Analyze(context.Background(), "is anything working today?"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
