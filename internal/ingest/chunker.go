// Package ingest uploads documents into the vector store: splitting,
// embedding, and upserting chunks.
package ingest

import (
	"strings"

	"github.com/raglab/raglab/internal/pkg/hash"
)

// separators are tried in order when splitting oversized text: prefer
// paragraph boundaries, then lines, then sentences, then words.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk is one piece of a split document.
type Chunk struct {
	Index   int
	Content string
	Hash    string
}

// ChunkerConfig controls how documents are split.
type ChunkerConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// Overlap is how many trailing characters of a chunk are repeated
	// at the start of the next one.
	Overlap int
}

// DefaultChunkerConfig returns sensible defaults for prose documents.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 1000, Overlap: 200}
}

// Chunker splits document text into overlapping chunks.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker creates a chunker. Invalid configuration falls back to
// the defaults; overlap is capped below the chunk size.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkerConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 5
	}
	return &Chunker{cfg: cfg}
}

// Split breaks text into overlapping chunks, preferring natural
// boundaries over hard cuts.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := splitUnits(text, c.cfg.ChunkSize, 0)
	merged := c.merge(units)

	chunks := make([]Chunk, 0, len(merged))
	for i, content := range merged {
		chunks = append(chunks, Chunk{
			Index:   i,
			Content: content,
			Hash:    hashContent(content),
		})
	}
	return chunks
}

// splitUnits recursively splits text into pieces no longer than size,
// cascading through the separator list and hard-cutting as the last
// resort.
func splitUnits(text string, size, sepIndex int) []string {
	if len(text) <= size {
		return []string{text}
	}
	if sepIndex >= len(separators) {
		var parts []string
		for len(text) > size {
			parts = append(parts, text[:size])
			text = text[size:]
		}
		if text != "" {
			parts = append(parts, text)
		}
		return parts
	}

	sep := separators[sepIndex]
	if !strings.Contains(text, sep) {
		return splitUnits(text, size, sepIndex+1)
	}

	var units []string
	for _, part := range strings.Split(text, sep) {
		if part == "" {
			continue
		}
		// Keep sentence punctuation with its sentence.
		if sep == ". " {
			part += "."
		}
		units = append(units, splitUnits(part, size, sepIndex+1)...)
	}
	return units
}

// merge packs units into chunks up to the target size, carrying the
// configured overlap from each chunk into the next.
func (c *Chunker) merge(units []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content == "" {
			return
		}
		chunks = append(chunks, content)
		current.Reset()
		if c.cfg.Overlap > 0 {
			tail := content
			if len(tail) > c.cfg.Overlap {
				tail = tail[len(tail)-c.cfg.Overlap:]
			}
			current.WriteString(tail)
		}
	}

	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit)+1 > c.cfg.ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(unit)
	}
	if strings.TrimSpace(current.String()) != "" {
		content := strings.TrimSpace(current.String())
		// Avoid emitting a trailing chunk that is pure overlap.
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], content) {
			chunks = append(chunks, content)
		}
	}
	return chunks
}

func hashContent(content string) string {
	return hash.SHA256String(content)
}
