package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/raglab/raglab/internal/pkg/errors"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	e := &Execution{
		ID:        "exec-1",
		Query:     "what is the parental leave policy?",
		Technique: "reranking",
		Answer:    "Sixteen weeks paid.",
		Sources: []Source{
			{Content: "chunk one", Score: 0.91, Document: "handbook.md", ChunkIndex: 4, OriginalScore: Float64Ptr(0.72)},
			{Content: "chunk two", Score: 0.64, Document: "handbook.md", ChunkIndex: 9},
		},
		Metrics: Metrics{
			LatencyMs:       Float64Ptr(842.5),
			InputTokens:     IntPtr(1200),
			OutputTokens:    IntPtr(180),
			TotalTokens:     IntPtr(1380),
			CostUSD:         Float64Ptr(0.000036),
			ChunksRetrieved: IntPtr(20),
			ChunksUsed:      IntPtr(5),
			Faithfulness:    Float64Ptr(0.0),
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, err := s.Get(ctx, "exec-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.Query != e.Query || got.Technique != e.Technique || got.Answer != e.Answer {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got.Sources))
	}
	if got.Sources[0].OriginalScore == nil || *got.Sources[0].OriginalScore != 0.72 {
		t.Errorf("original score not preserved: %v", got.Sources[0].OriginalScore)
	}
	if got.Metrics.Faithfulness == nil || *got.Metrics.Faithfulness != 0.0 {
		t.Error("explicit zero faithfulness must survive the round trip as zero, not null")
	}
	if got.Metrics.AnswerRelevancy != nil {
		t.Error("absent answer relevancy must come back null")
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at mismatch: got %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestSQLiteStorage_GetNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestSQLiteStorage_ListOrderingAndFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Shuffled insertion order
	inserts := []struct {
		id        string
		technique string
		offset    int
	}{
		{"e3", "baseline", 3},
		{"e1", "hyde", 1},
		{"e4", "baseline", 4},
		{"e2", "baseline", 2},
	}
	for _, in := range inserts {
		if err := s.Insert(ctx, &Execution{
			ID: in.id, Query: "q", Technique: in.technique,
			CreatedAt: base.Add(time.Duration(in.offset) * time.Hour),
		}); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	list, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"e4", "e3", "e2", "e1"}
	if len(list) != len(want) {
		t.Fatalf("expected %d executions, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, id)
		}
	}

	filtered, err := s.List(ctx, Filter{Techniques: []string{"baseline"}, Limit: 2})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != "e4" || filtered[1].ID != "e3" {
		t.Errorf("unexpected filtered result: %v", filtered)
	}
}

func TestSQLiteStorage_ListOrdersSubsecondTimestamps(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Same second, fractional parts whose shortest decimal forms sort
	// lexicographically against chronological order (.1 vs .11)
	second := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := second.Add(100 * time.Millisecond)
	newer := second.Add(110 * time.Millisecond)

	for _, in := range []struct {
		id string
		ts time.Time
	}{
		{"older", older},
		{"newer", newer},
	} {
		if err := s.Insert(ctx, &Execution{
			ID: in.id, Query: "q", Technique: "baseline", CreatedAt: in.ts,
		}); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	list, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "newer" || list[1].ID != "older" {
		t.Fatalf("expected [newer older], got %v and %v", list[0].ID, list[1].ID)
	}

	// Bound comparisons use the same fixed-width encoding
	fromNewer, err := s.List(ctx, Filter{From: &newer})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(fromNewer) != 1 || fromNewer[0].ID != "newer" {
		t.Errorf("from bound at %v should match only the newer row, got %v", newer, fromNewer)
	}

	toOlder, err := s.List(ctx, Filter{To: &older})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(toOlder) != 1 || toOlder[0].ID != "older" {
		t.Errorf("to bound at %v should match only the older row, got %v", older, toOlder)
	}
}

func TestSQLiteStorage_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, technique := range []string{"baseline", "baseline", "hyde"} {
		if err := s.Insert(ctx, &Execution{
			ID: string(rune('a' + i)), Query: "q", Technique: technique,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	count, err := s.Delete(ctx, Filter{Techniques: []string{"baseline"}})
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 deleted, got %d", count)
	}

	count, err = s.Delete(ctx, Filter{Techniques: []string{"baseline"}})
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 deleted on empty match, got %d", count)
	}

	remaining, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Technique != "hyde" {
		t.Errorf("unexpected remaining executions: %v", remaining)
	}
}
