package components

import "github.com/raglab/raglab/internal/comparison"

// DashboardData feeds the dashboard page template.
type DashboardData struct {
	// Snapshot is the latest comparison result, nil before the first
	// refresh completes.
	Snapshot *comparison.Result

	// RefreshSeconds is the polling interval shown to the browser.
	RefreshSeconds int
}

// rankingOrder fixes the display order of ranking categories.
var rankingOrder = []string{
	comparison.RankFastest,
	comparison.RankCheapest,
	comparison.RankMostFaithful,
	comparison.RankMostRelevant,
	comparison.RankBestPrecision,
	comparison.RankBestRecall,
	comparison.RankBestRetrieval,
}

// rankingTitles maps ranking categories to display names.
var rankingTitles = map[string]string{
	comparison.RankFastest:       "Fastest",
	comparison.RankCheapest:      "Cheapest",
	comparison.RankMostFaithful:  "Most Faithful",
	comparison.RankMostRelevant:  "Most Relevant",
	comparison.RankBestPrecision: "Best Precision",
	comparison.RankBestRecall:    "Best Recall",
	comparison.RankBestRetrieval: "Best Retrieval",
}
