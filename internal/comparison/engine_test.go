package comparison

import (
	"math"
	"testing"
	"time"

	"github.com/raglab/raglab/internal/recorder"
)

func exec(technique string, m recorder.Metrics, sources ...recorder.Source) *recorder.Execution {
	return &recorder.Execution{
		Query:     "q",
		Technique: technique,
		Metrics:   m,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompare_EmptyInputYieldsNoData(t *testing.T) {
	result := Compare(nil, recorder.Filter{})

	if !result.NoData {
		t.Error("expected no-data result")
	}
	if result.TotalExecutions != 0 {
		t.Errorf("expected 0 executions, got %d", result.TotalExecutions)
	}
	if len(result.Rows) != 0 {
		t.Errorf("expected empty rows, got %d", len(result.Rows))
	}
	if len(result.Rankings) != 0 {
		t.Errorf("expected no rankings, got %v", result.Rankings)
	}
}

func TestCompare_AllNullAverageIsUnknown(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{}),
		exec("baseline", recorder.Metrics{}),
	}

	result := Compare(executions, recorder.Filter{})

	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row.ExecutionCount != 2 {
		t.Errorf("expected count 2, got %d", row.ExecutionCount)
	}
	if row.AvgLatencyMs != nil {
		t.Errorf("all-null latency must average to unknown, got %v", *row.AvgLatencyMs)
	}
	if row.AvgFaithfulness != nil {
		t.Errorf("all-null faithfulness must average to unknown, got %v", *row.AvgFaithfulness)
	}
}

func TestCompare_ZeroScoreDistinctFromNull(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{Faithfulness: recorder.Float64Ptr(0.0)}),
		exec("baseline", recorder.Metrics{Faithfulness: nil}),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.AvgFaithfulness == nil {
		t.Fatal("expected faithfulness average to be present")
	}
	if *row.AvgFaithfulness != 0.0 {
		t.Errorf("expected average exactly 0.0 (null excluded), got %v", *row.AvgFaithfulness)
	}
}

func TestCompare_LatencyAverage(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(100)}),
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(200)}),
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(300)}),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.AvgLatencyMs == nil || !approxEqual(*row.AvgLatencyMs, 200.0) {
		t.Errorf("expected avg latency 200.0, got %v", row.AvgLatencyMs)
	}
}

func TestCompare_TopKPositionalScores(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{},
			recorder.Source{Score: 0.9},
			recorder.Source{Score: 0.7},
			recorder.Source{Score: 0.5},
			recorder.Source{Score: 0.3},
		),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.AvgTop1 == nil || !approxEqual(*row.AvgTop1, 0.9) {
		t.Errorf("expected avg_top1 0.9, got %v", row.AvgTop1)
	}
	if row.AvgTop2 == nil || !approxEqual(*row.AvgTop2, 0.7) {
		t.Errorf("expected avg_top2 0.7, got %v", row.AvgTop2)
	}
	if row.AvgTop3 == nil || !approxEqual(*row.AvgTop3, 0.5) {
		t.Errorf("expected avg_top3 0.5, got %v", row.AvgTop3)
	}
	want := (0.9 + 0.7 + 0.5) / 3
	if row.AvgTop3Mean == nil || !approxEqual(*row.AvgTop3Mean, want) {
		t.Errorf("expected avg_top3_mean %v, got %v", want, row.AvgTop3Mean)
	}
}

func TestCompare_TopKSortsSourcesByScore(t *testing.T) {
	// Retrieval order differs from score order; top-k must sort first
	executions := []*recorder.Execution{
		exec("fusion", recorder.Metrics{},
			recorder.Source{Score: 0.4},
			recorder.Source{Score: 0.8},
			recorder.Source{Score: 0.6},
		),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.AvgTop1 == nil || !approxEqual(*row.AvgTop1, 0.8) {
		t.Errorf("expected avg_top1 0.8, got %v", row.AvgTop1)
	}
}

func TestCompare_FewerSourcesSkipsPositions(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{}, recorder.Source{Score: 0.9}),
		exec("baseline", recorder.Metrics{}, recorder.Source{Score: 0.5}, recorder.Source{Score: 0.4}),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.AvgTop1 == nil || !approxEqual(*row.AvgTop1, 0.7) {
		t.Errorf("expected avg_top1 0.7, got %v", row.AvgTop1)
	}
	// Only one execution has a second source
	if row.AvgTop2 == nil || !approxEqual(*row.AvgTop2, 0.4) {
		t.Errorf("expected avg_top2 0.4, got %v", row.AvgTop2)
	}
	if row.AvgTop3 != nil {
		t.Errorf("expected avg_top3 unknown, got %v", *row.AvgTop3)
	}
}

func TestCompare_RankingsOmitAllNullCategories(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(100)}),
		exec("hyde", recorder.Metrics{LatencyMs: recorder.Float64Ptr(150)}),
	}

	result := Compare(executions, recorder.Filter{})

	if _, ok := result.Rankings[RankFastest]; !ok {
		t.Error("expected fastest ranking to be present")
	}
	if _, ok := result.Rankings[RankMostFaithful]; ok {
		t.Error("expected most_faithful ranking to be omitted when all values are null")
	}
	if _, ok := result.Rankings[RankBestRetrieval]; ok {
		t.Error("expected best_retrieval ranking to be omitted without sources")
	}
}

func TestCompare_RankingOrderAndDirection(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{
			LatencyMs: recorder.Float64Ptr(300),
			CostUSD:   recorder.Float64Ptr(0.002),
		}),
		exec("hyde", recorder.Metrics{
			LatencyMs: recorder.Float64Ptr(100),
			CostUSD:   recorder.Float64Ptr(0.004),
		}),
	}

	result := Compare(executions, recorder.Filter{})

	fastest := result.Rankings[RankFastest]
	if len(fastest) != 2 || fastest[0] != "hyde" || fastest[1] != "baseline" {
		t.Errorf("unexpected fastest ranking: %v", fastest)
	}

	cheapest := result.Rankings[RankCheapest]
	if len(cheapest) != 2 || cheapest[0] != "baseline" || cheapest[1] != "hyde" {
		t.Errorf("unexpected cheapest ranking: %v", cheapest)
	}
}

func TestCompare_TieBreakPreservesGroupOrder(t *testing.T) {
	// A's group forms before B's; equal latencies must keep A first
	executions := []*recorder.Execution{
		exec("adaptive", recorder.Metrics{LatencyMs: recorder.Float64Ptr(100)}),
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(100)}),
	}

	result := Compare(executions, recorder.Filter{})

	fastest := result.Rankings[RankFastest]
	if len(fastest) != 2 || fastest[0] != "adaptive" || fastest[1] != "baseline" {
		t.Errorf("tie-break must preserve group formation order, got %v", fastest)
	}
}

func TestCompare_RankingExcludesUnknownTechniques(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{Faithfulness: recorder.Float64Ptr(0.8)}),
		exec("hyde", recorder.Metrics{}),
	}

	result := Compare(executions, recorder.Filter{})

	faithful := result.Rankings[RankMostFaithful]
	if len(faithful) != 1 || faithful[0] != "baseline" {
		t.Errorf("techniques without a value must be left out, got %v", faithful)
	}
}

func TestCompare_CountIncludesNullMetricRecords(t *testing.T) {
	executions := []*recorder.Execution{
		exec("baseline", recorder.Metrics{LatencyMs: recorder.Float64Ptr(100)}),
		exec("baseline", recorder.Metrics{}),
	}

	result := Compare(executions, recorder.Filter{})

	row := result.Rows[0]
	if row.ExecutionCount != 2 {
		t.Errorf("expected execution count 2, got %d", row.ExecutionCount)
	}
	if row.AvgLatencyMs == nil || !approxEqual(*row.AvgLatencyMs, 100.0) {
		t.Errorf("expected latency averaged over non-null entries only, got %v", row.AvgLatencyMs)
	}
	if result.TotalExecutions != 2 {
		t.Errorf("expected total 2, got %d", result.TotalExecutions)
	}
}

func TestCompare_RowOrderFollowsFirstAppearance(t *testing.T) {
	executions := []*recorder.Execution{
		exec("graph", recorder.Metrics{}),
		exec("baseline", recorder.Metrics{}),
		exec("graph", recorder.Metrics{}),
	}

	result := Compare(executions, recorder.Filter{})

	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Technique != "graph" || result.Rows[1].Technique != "baseline" {
		t.Errorf("unexpected row order: %v, %v", result.Rows[0].Technique, result.Rows[1].Technique)
	}
}
