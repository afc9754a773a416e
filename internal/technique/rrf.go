package technique

import (
	"sort"

	"github.com/raglab/raglab/internal/qdrant"
)

// rrfK is the Reciprocal Rank Fusion smoothing constant. Higher values
// reduce the impact of rank position differences.
const rrfK = 60

// fusedResult is a search result with its combined RRF score and the
// raw similarity scores it received across the query variations.
type fusedResult struct {
	result    qdrant.SearchResult
	score     float64
	originals []float32
}

// fuseRanked merges multiple ranked result lists using Reciprocal Rank
// Fusion: score(doc) = sum over lists of 1/(k + rank). Results are
// keyed by point ID, sorted by fused score descending (ID as the
// tie-break for determinism), and truncated to topK.
func fuseRanked(lists [][]qdrant.SearchResult, k, topK int) []fusedResult {
	if k <= 0 {
		k = rrfK
	}

	fused := make(map[string]*fusedResult)
	var order []string

	for _, list := range lists {
		for rank, r := range list {
			f, ok := fused[r.ID]
			if !ok {
				f = &fusedResult{result: r}
				fused[r.ID] = f
				order = append(order, r.ID)
			}
			f.score += 1.0 / float64(k+rank+1)
			f.originals = append(f.originals, r.Score)
		}
	}

	results := make([]fusedResult, 0, len(order))
	for _, id := range order {
		results = append(results, *fused[id])
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].result.ID < results[j].result.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
