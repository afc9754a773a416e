package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Search performs a dense vector search over a collection.
func (c *Client) Search(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	limit := req.Limit
	if limit == 0 {
		limit = 10
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Query:          qdrant.NewQueryDense(req.Vector),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
	}

	if req.Filter != nil {
		queryPoints.Filter = buildSearchFilter(req.Filter)
	}

	if req.ScoreThreshold != nil {
		queryPoints.ScoreThreshold = req.ScoreThreshold
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	return scoredPointsToResults(results), nil
}

// buildSearchFilter builds a Qdrant filter from SearchFilter.
func buildSearchFilter(f *SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}

	var conditions []*qdrant.Condition

	if f.Document != "" {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "document",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: f.Document,
						},
					},
				},
			},
		})
	}

	if f.ChunkHash != "" {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "chunk_hash",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: f.ChunkHash,
						},
					},
				},
			},
		})
	}

	if len(conditions) == 0 {
		return nil
	}

	return &qdrant.Filter{
		Must: conditions,
	}
}

// scoredPointsToResults converts Qdrant scored points to SearchResults.
func scoredPointsToResults(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))

	for _, p := range points {
		results = append(results, scoredPointToResult(p))
	}

	return results
}

// scoredPointToResult converts a single scored point to SearchResult.
func scoredPointToResult(p *qdrant.ScoredPoint) SearchResult {
	var id string
	switch v := p.Id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		id = v.Uuid
	case *qdrant.PointId_Num:
		id = fmt.Sprintf("%d", v.Num)
	}

	return SearchResult{
		ID:      id,
		Score:   p.Score,
		Payload: extractPayload(p.Payload),
	}
}

// extractPayload extracts ChunkPayload from Qdrant payload map.
func extractPayload(payload map[string]*qdrant.Value) ChunkPayload {
	result := ChunkPayload{}

	if v := getStringValue(payload, "document"); v != "" {
		result.Document = v
	}
	result.ChunkIndex = getIntValue(payload, "chunk_index")
	if v := getStringValue(payload, "content"); v != "" {
		result.Content = v
	}
	if v := getStringValue(payload, "chunk_hash"); v != "" {
		result.ChunkHash = v
	}
	if v := getStringValue(payload, "indexed_at"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			result.IndexedAt = t
		}
	}

	return result
}

// Helper functions to extract values from Qdrant payload

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func getIntValue(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if iv, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
			return int(iv.IntegerValue)
		}
	}
	return 0
}
