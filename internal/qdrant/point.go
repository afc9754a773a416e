package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// UpsertPoints inserts or updates chunks in a collection.
func (c *Client) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, pointToQdrant(p))
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(collection),
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true), // Wait for indexing
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// UpsertPointsBatch upserts chunks in batches to avoid memory issues.
func (c *Client) UpsertPointsBatch(ctx context.Context, collection string, points []Point, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(points); i += batchSize {
		end := i + batchSize
		if end > len(points) {
			end = len(points)
		}

		batch := points[i:end]
		if err := c.UpsertPoints(ctx, collection, batch); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeletePoints deletes chunks based on filter criteria.
func (c *Client) DeletePoints(ctx context.Context, collection string, filter DeleteFilter) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	name := collectionName(collection)

	// Delete by IDs
	if len(filter.IDs) > 0 {
		pointIDs := make([]*qdrant.PointId, len(filter.IDs))
		for i, id := range filter.IDs {
			pointIDs[i] = qdrant.NewIDUUID(id)
		}

		_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{
						Ids: pointIDs,
					},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to delete by IDs: %w", err)
		}
		return nil
	}

	// Delete by filter
	if filter.Document == "" {
		return fmt.Errorf("no valid delete criteria specified")
	}

	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildSearchFilter(&SearchFilter{Document: filter.Document}),
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}

	return nil
}

// CountPoints returns the number of chunks matching the filter.
func (c *Client) CountPoints(ctx context.Context, collection string, filter *SearchFilter) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	countReq := &qdrant.CountPoints{
		CollectionName: collectionName(collection),
		Exact:          qdrant.PtrOf(true),
	}

	if filter != nil {
		countReq.Filter = buildSearchFilter(filter)
	}

	count, err := c.client.Count(ctx, countReq)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return count, nil
}

// pointToQdrant converts a Point to a Qdrant PointStruct.
func pointToQdrant(p Point) *qdrant.PointStruct {
	payload := map[string]any{
		"document":    p.Payload.Document,
		"chunk_index": p.Payload.ChunkIndex,
		"content":     p.Payload.Content,
		"chunk_hash":  p.Payload.ChunkHash,
		"indexed_at":  p.Payload.IndexedAt.Format(time.RFC3339),
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectorsDense(p.Vector),
		Payload: qdrant.NewValueMap(payload),
	}
}

// GetChunksByDocument retrieves all chunks for a specific document.
func (c *Client) GetChunksByDocument(ctx context.Context, collection, document string) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	filter := buildSearchFilter(&SearchFilter{Document: document})

	// Use scroll to get all matching points
	var results []SearchResult
	var offset *qdrant.PointId
	const batchSize = 100

	for {
		scrollReq := &qdrant.ScrollPoints{
			CollectionName: collectionName(collection),
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(batchSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			Offset:         offset,
		}

		points, err := c.client.Scroll(ctx, scrollReq)
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, p := range points {
			result := SearchResult{
				Payload: extractPayload(p.Payload),
			}
			switch v := p.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				result.ID = v.Uuid
			case *qdrant.PointId_Num:
				result.ID = fmt.Sprintf("%d", v.Num)
			}
			results = append(results, result)
		}

		// If we got fewer than batchSize, we've reached the end
		if len(points) < batchSize {
			break
		}

		if len(points) > 0 {
			offset = points[len(points)-1].Id
		}
	}

	return results, nil
}
