// Package comparison aggregates recorded executions into per-technique
// summary statistics and rankings for the dashboard.
package comparison

import (
	"sort"

	"github.com/raglab/raglab/internal/recorder"
)

// Ranking category names.
const (
	RankFastest       = "fastest"
	RankCheapest      = "cheapest"
	RankMostFaithful  = "most_faithful"
	RankMostRelevant  = "most_relevant"
	RankBestPrecision = "best_precision"
	RankBestRecall    = "best_recall"
	RankBestRetrieval = "best_retrieval"
)

// Row is the per-technique aggregate. Nil averages mean "unknown":
// no execution in the group carried a value for that metric.
type Row struct {
	Technique           string   `json:"technique"`
	ExecutionCount      int      `json:"execution_count"`
	AvgLatencyMs        *float64 `json:"avg_latency_ms,omitempty"`
	AvgCostUSD          *float64 `json:"avg_cost_usd,omitempty"`
	AvgFaithfulness     *float64 `json:"avg_faithfulness,omitempty"`
	AvgAnswerRelevancy  *float64 `json:"avg_answer_relevancy,omitempty"`
	AvgContextPrecision *float64 `json:"avg_context_precision,omitempty"`
	AvgContextRecall    *float64 `json:"avg_context_recall,omitempty"`
	AvgChunksRetrieved  *float64 `json:"avg_chunks_retrieved,omitempty"`
	AvgTop1             *float64 `json:"avg_top1,omitempty"`
	AvgTop2             *float64 `json:"avg_top2,omitempty"`
	AvgTop3             *float64 `json:"avg_top3,omitempty"`
	AvgTop3Mean         *float64 `json:"avg_top3_mean,omitempty"`
}

// Result is the comparison payload consumed by the dashboard.
type Result struct {
	Rows            []Row               `json:"rows"`
	Rankings        map[string][]string `json:"rankings"`
	FiltersApplied  recorder.Filter     `json:"filters_applied"`
	TotalExecutions int                 `json:"total_executions"`
	NoData          bool                `json:"no_data"`
}

// mean accumulates non-null values for one metric.
type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.count++
}

func (m *mean) addPtr(v *float64) {
	if v != nil {
		m.add(*v)
	}
}

func (m *mean) addIntPtr(v *int) {
	if v != nil {
		m.add(float64(*v))
	}
}

// value returns the average, or nil when no values were seen. A group
// where every entry was null reports "unknown", never zero.
func (m *mean) value() *float64 {
	if m.count == 0 {
		return nil
	}
	avg := m.sum / float64(m.count)
	return &avg
}

// group accumulates one technique's executions.
type group struct {
	technique string
	count     int

	latency   mean
	cost      mean
	faith     mean
	relevancy mean
	precision mean
	recall    mean
	chunks    mean

	top1 mean
	top2 mean
	top3 mean
}

// Compare aggregates a filtered set of executions. Empty input yields
// an explicit no-data result, not an error.
func Compare(executions []*recorder.Execution, filter recorder.Filter) *Result {
	result := &Result{
		Rankings:        map[string][]string{},
		FiltersApplied:  filter,
		TotalExecutions: len(executions),
	}

	if len(executions) == 0 {
		result.NoData = true
		result.Rows = []Row{}
		return result
	}

	// Group by technique, preserving first-appearance order. That
	// order is also the documented tie-break for rankings.
	var order []string
	groups := make(map[string]*group)
	for _, e := range executions {
		g, ok := groups[e.Technique]
		if !ok {
			g = &group{technique: e.Technique}
			groups[e.Technique] = g
			order = append(order, e.Technique)
		}
		g.accumulate(e)
	}

	rows := make([]Row, 0, len(order))
	for _, technique := range order {
		rows = append(rows, groups[technique].row())
	}
	result.Rows = rows

	result.Rankings = buildRankings(rows)
	return result
}

func (g *group) accumulate(e *recorder.Execution) {
	g.count++

	m := e.Metrics
	g.latency.addPtr(m.LatencyMs)
	g.cost.addPtr(m.CostUSD)
	g.faith.addPtr(m.Faithfulness)
	g.relevancy.addPtr(m.AnswerRelevancy)
	g.precision.addPtr(m.ContextPrecision)
	g.recall.addPtr(m.ContextRecall)
	g.chunks.addIntPtr(m.ChunksRetrieved)

	// Top-k positional scores: sources sorted by score descending,
	// missing positions are skipped, not zero-filled.
	scores := make([]float64, 0, len(e.Sources))
	for _, s := range e.Sources {
		scores = append(scores, s.Score)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	if len(scores) > 3 {
		scores = scores[:3]
	}
	for i, score := range scores {
		switch i {
		case 0:
			g.top1.add(score)
		case 1:
			g.top2.add(score)
		case 2:
			g.top3.add(score)
		}
	}
}

func (g *group) row() Row {
	return Row{
		Technique:           g.technique,
		ExecutionCount:      g.count,
		AvgLatencyMs:        g.latency.value(),
		AvgCostUSD:          g.cost.value(),
		AvgFaithfulness:     g.faith.value(),
		AvgAnswerRelevancy:  g.relevancy.value(),
		AvgContextPrecision: g.precision.value(),
		AvgContextRecall:    g.recall.value(),
		AvgChunksRetrieved:  g.chunks.value(),
		AvgTop1:             g.top1.value(),
		AvgTop2:             g.top2.value(),
		AvgTop3:             g.top3.value(),
		AvgTop3Mean:         meanOfAverages(g.top1.value(), g.top2.value(), g.top3.value()),
	}
}

// meanOfAverages combines the positional averages into one composite
// retrieval-quality indicator, skipping unknown positions.
func meanOfAverages(values ...*float64) *float64 {
	var m mean
	for _, v := range values {
		m.addPtr(v)
	}
	return m.value()
}

// buildRankings produces an ordered technique list per category. A
// category is omitted when no technique has a value for its metric;
// within a category, techniques without a value are left out. Ties
// preserve group formation order (stable sort).
func buildRankings(rows []Row) map[string][]string {
	categories := []struct {
		name        string
		metric      func(Row) *float64
		lowerBetter bool
	}{
		{RankFastest, func(r Row) *float64 { return r.AvgLatencyMs }, true},
		{RankCheapest, func(r Row) *float64 { return r.AvgCostUSD }, true},
		{RankMostFaithful, func(r Row) *float64 { return r.AvgFaithfulness }, false},
		{RankMostRelevant, func(r Row) *float64 { return r.AvgAnswerRelevancy }, false},
		{RankBestPrecision, func(r Row) *float64 { return r.AvgContextPrecision }, false},
		{RankBestRecall, func(r Row) *float64 { return r.AvgContextRecall }, false},
		{RankBestRetrieval, func(r Row) *float64 { return r.AvgTop3Mean }, false},
	}

	rankings := make(map[string][]string)
	for _, cat := range categories {
		type entry struct {
			technique string
			value     float64
		}

		var entries []entry
		for _, row := range rows {
			if v := cat.metric(row); v != nil {
				entries = append(entries, entry{row.Technique, *v})
			}
		}
		if len(entries) == 0 {
			continue
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if cat.lowerBetter {
				return entries[i].value < entries[j].value
			}
			return entries[i].value > entries[j].value
		})

		ranked := make([]string, len(entries))
		for i, e := range entries {
			ranked[i] = e.technique
		}
		rankings[cat.name] = ranked
	}

	return rankings
}
