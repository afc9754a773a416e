// Package qdrant provides a wrapper around the Qdrant Go client
// with simplified APIs for document chunk storage and retrieval.
package qdrant

import (
	"time"
)

// CollectionConfig defines the configuration for creating a Qdrant collection.
type CollectionConfig struct {
	// Name is the collection name (will be prefixed with "raglab_").
	Name string

	// VectorSize is the dimension of the embedding vectors.
	VectorSize uint64

	// OnDiskPayload stores payload on disk to save RAM.
	OnDiskPayload bool

	// IndexingThreshold is the number of vectors before HNSW index is built.
	IndexingThreshold uint64
}

// DefaultCollectionConfig returns sensible defaults for a document collection.
func DefaultCollectionConfig(name string) CollectionConfig {
	return CollectionConfig{
		Name:              name,
		VectorSize:        768,
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
	}
}

// Point represents a chunk to upsert into Qdrant.
type Point struct {
	// ID is the unique point identifier.
	ID string

	// Vector is the embedding vector.
	Vector []float32

	// Payload is the metadata associated with this chunk.
	Payload ChunkPayload
}

// ChunkPayload contains the metadata stored alongside a chunk vector.
type ChunkPayload struct {
	Document   string    `json:"document"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	ChunkHash  string    `json:"chunk_hash"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// SearchRequest defines parameters for a dense vector search.
type SearchRequest struct {
	// Vector is the query embedding.
	Vector []float32

	// Limit is the maximum number of results to return.
	Limit uint64

	// Filter constrains the search to matching chunks.
	Filter *SearchFilter

	// WithPayload includes payload in results.
	WithPayload bool

	// ScoreThreshold filters results below this score.
	ScoreThreshold *float32
}

// SearchFilter defines filter conditions for search.
type SearchFilter struct {
	// Document filters by exact document name.
	Document string

	// ChunkHash filters by chunk hash.
	ChunkHash string
}

// SearchResult represents a single search result.
type SearchResult struct {
	// ID is the point identifier.
	ID string

	// Score is the cosine similarity score.
	Score float32

	// Payload contains the chunk metadata.
	Payload ChunkPayload
}

// DeleteFilter defines conditions for deleting points.
type DeleteFilter struct {
	// IDs deletes specific point IDs.
	IDs []string

	// Document deletes all chunks of this document.
	Document string
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	// Name is the collection name (without prefix).
	Name string

	// PointsCount is the total number of points.
	PointsCount uint64

	// Status is the collection health status.
	Status string

	// SegmentsCount is the number of segments.
	SegmentsCount uint64
}
