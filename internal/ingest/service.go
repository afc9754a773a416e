package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/config"
	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/pkg/security"
	"github.com/raglab/raglab/internal/qdrant"
)

// VectorStore is the slice of the Qdrant client the ingest flow needs.
type VectorStore interface {
	DeletePoints(ctx context.Context, collection string, filter qdrant.DeleteFilter) error
	UpsertPointsBatch(ctx context.Context, collection string, points []qdrant.Point, batchSize int) error
}

// Result summarizes one document upload.
type Result struct {
	Document string        `json:"document"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

// Service runs the upload pipeline: split, embed, upsert.
type Service struct {
	provider   llm.Provider
	vectors    VectorStore
	collection string
	events     bus.Bus
	chunker    *Chunker
	cfg        config.IngestConfig
	log        *logger.Logger
}

// NewService creates an ingest service. events is optional.
func NewService(provider llm.Provider, vectors VectorStore, collection string, events bus.Bus, cfg config.IngestConfig, log *logger.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Service{
		provider:   provider,
		vectors:    vectors,
		collection: collection,
		events:     events,
		chunker:    NewChunker(ChunkerConfig{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}),
		cfg:        cfg,
		log:        log,
	}
}

// Ingest uploads one document. Re-uploading a document replaces its
// previous chunks.
func (s *Service) Ingest(ctx context.Context, document, text string) (*Result, error) {
	start := time.Now()

	document = strings.TrimSpace(document)
	if err := security.ValidateDocumentName(document); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if err := security.ValidateDocumentContent(text); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if security.IsBinaryContent(text) {
		return nil, errors.ValidationError("document text appears to be binary")
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, errors.ValidationError("document text must not be empty")
	}

	points, err := s.embedChunks(ctx, document, chunks)
	if err != nil {
		return nil, errors.LLMError("embedding document chunks", err)
	}

	if err := s.vectors.DeletePoints(ctx, s.collection, qdrant.DeleteFilter{Document: document}); err != nil {
		return nil, errors.VectorStoreError("replacing existing chunks", err)
	}
	if err := s.vectors.UpsertPointsBatch(ctx, s.collection, points, s.cfg.BatchSize); err != nil {
		return nil, errors.VectorStoreError("upserting chunks", err)
	}

	result := &Result{
		Document: document,
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}

	s.log.Info("document indexed", "document", security.SanitizeForLog(document), "chunks", result.Chunks, "duration", result.Duration)
	s.publishIndexed(ctx, result)
	return result, nil
}

// embedChunks embeds chunk batches concurrently and assembles points.
// Point IDs are deterministic per document and chunk index so that
// re-uploads overwrite instead of accumulating.
func (s *Service) embedChunks(ctx context.Context, document string, chunks []Chunk) ([]qdrant.Point, error) {
	points := make([]qdrant.Point, len(chunks))
	now := time.Now().UTC()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for batchStart := 0; batchStart < len(chunks); batchStart += s.cfg.BatchSize {
		batchEnd := batchStart + s.cfg.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]
		offset := batchStart

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vectors, err := s.provider.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}

			for i, c := range batch {
				points[offset+i] = qdrant.Point{
					ID:     pointID(document, c.Index),
					Vector: vectors[i],
					Payload: qdrant.ChunkPayload{
						Document:   document,
						ChunkIndex: c.Index,
						Content:    c.Content,
						ChunkHash:  c.Hash,
						IndexedAt:  now,
					},
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// pointID derives a stable UUID from the document name and chunk index.
func pointID(document string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(document+"#"+strconv.Itoa(index))).String()
}

func (s *Service) publishIndexed(ctx context.Context, result *Result) {
	if s.events == nil {
		return
	}
	event := bus.Event{
		Type:   bus.TopicDocumentIndexed,
		Source: "ingest",
		Payload: map[string]interface{}{
			"document":    result.Document,
			"chunks":      result.Chunks,
			"duration_ms": result.Duration.Milliseconds(),
		},
	}
	if err := s.events.Publish(ctx, bus.TopicDocumentIndexed, event); err != nil {
		s.log.Debug("failed to publish index event", "error", err)
	}
}
