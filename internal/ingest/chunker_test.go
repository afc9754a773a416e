package ingest

import (
	"strings"
	"testing"
)

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 100, Overlap: 20})

	chunks := c.Split("a short document")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[0].Content != "a short document" {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
	if chunks[0].Hash == "" {
		t.Error("chunk hash must be set")
	}
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())

	if chunks := c.Split("   \n  "); chunks != nil {
		t.Errorf("expected no chunks for blank text, got %d", len(chunks))
	}
}

func TestChunker_SplitsOnParagraphs(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 50, Overlap: 0})

	text := strings.Repeat("alpha bravo charlie. ", 2) + "\n\n" + strings.Repeat("delta echo foxtrot. ", 2)
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if len(chunk.Content) > 50+10 {
			t.Errorf("chunk %d exceeds size bound: %d chars", i, len(chunk.Content))
		}
	}
}

func TestChunker_OverlapCarriesContext(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 40, Overlap: 10})

	text := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		if !strings.Contains(chunks[i].Content, strings.TrimSpace(tail)) {
			t.Errorf("chunk %d does not carry overlap from its predecessor: %q then %q", i, prev, chunks[i].Content)
		}
	}
}

func TestChunker_HardCutsUnbrokenText(t *testing.T) {
	c := NewChunker(ChunkerConfig{ChunkSize: 30, Overlap: 0})

	chunks := c.Split(strings.Repeat("x", 100))
	if len(chunks) < 3 {
		t.Fatalf("expected hard-cut chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk.Content) > 30 {
			t.Errorf("hard cut exceeded size: %d", len(chunk.Content))
		}
	}
}

func TestChunker_DeterministicHashes(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())

	a := c.Split("some document body")
	b := c.Split("some document body")
	if a[0].Hash != b[0].Hash {
		t.Error("identical content must hash identically")
	}
}
