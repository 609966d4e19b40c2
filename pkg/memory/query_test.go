package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func stampedEntry(text, ts string) MemoryEntry {
	e := testEntry("", text)
	e.Timestamp = ts
	return e
}

func newTestQueryService(t *testing.T) *QueryService {
	t.Helper()
	cache, err := newRetrievalCache(time.Minute)
	if err != nil {
		t.Fatalf("newRetrievalCache: %v", err)
	}
	return NewQueryService(time.Second, cache, zap.NewNop().Sugar())
}

func TestTopK_NilIndexFallsBackToRecency(t *testing.T) {
	q := newTestQueryService(t)
	entries := []MemoryEntry{
		stampedEntry("oldest", "2026-08-01T00:00:00Z"),
		stampedEntry("newest", "2026-08-29T00:00:00Z"),
		stampedEntry("middle", "2026-08-15T00:00:00Z"),
	}

	results, mode := q.TopK(context.Background(), entries, nil, "anything", 2)
	if mode != ModeRecent {
		t.Fatalf("mode = %q, want %q", mode, ModeRecent)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Entry.Memory != "newest" || results[1].Entry.Memory != "middle" {
		t.Fatalf("recency order wrong: %q, %q", results[0].Entry.Memory, results[1].Entry.Memory)
	}
}

func TestTopK_BlankQueryFallsBackToRecency(t *testing.T) {
	q := newTestQueryService(t)
	idx := &fakeIndex{queryFn: func(string) (any, error) {
		t.Fatalf("blank query must not hit the index")
		return nil, nil
	}}
	entries := []MemoryEntry{stampedEntry("only", "2026-08-29T00:00:00Z")}

	_, mode := q.TopK(context.Background(), entries, idx, "   ", 5)
	if mode != ModeRecent {
		t.Fatalf("mode = %q, want %q", mode, ModeRecent)
	}
}

func TestTopK_QueryErrorFallsBackToRecency(t *testing.T) {
	q := newTestQueryService(t)
	idx := &fakeIndex{queryFn: func(string) (any, error) {
		return nil, fmt.Errorf("index offline")
	}}
	entries := []MemoryEntry{stampedEntry("only", "2026-08-29T00:00:00Z")}

	results, mode := q.TopK(context.Background(), entries, idx, "jazz", 5)
	if mode != ModeRecent || len(results) != 1 {
		t.Fatalf("error path must degrade to recency: mode=%q n=%d", mode, len(results))
	}
}

func TestTopK_EmptyStoreNeverFails(t *testing.T) {
	q := newTestQueryService(t)
	results, mode := q.TopK(context.Background(), nil, &fakeIndex{}, "jazz", 5)
	if mode != ModeRecent || len(results) != 0 {
		t.Fatalf("empty store: mode=%q n=%d", mode, len(results))
	}
}

func TestTopK_SemanticCorrelation(t *testing.T) {
	q := newTestQueryService(t)
	entries := []MemoryEntry{
		testEntry("vec-1", "User enjoys jazz"),
		testEntry("vec-2", "User dislikes loud bars"),
		testEntry("vec-3", "User enjoys hiking"),
	}
	idx := &fakeIndex{queryFn: func(string) (any, error) {
		return []any{
			map[string]any{"key": "vec-3", "score": 0.81},
			map[string]any{"key": "vec-1", "score": 0.93},
			map[string]any{"key": "vec-missing", "score": 0.99},
		}, nil
	}}

	results, mode := q.TopK(context.Background(), entries, idx, "music", 2)
	if mode != ModeSemantic {
		t.Fatalf("mode = %q, want %q", mode, ModeSemantic)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Entry.ID != "vec-1" || results[1].Entry.ID != "vec-3" {
		t.Fatalf("score order wrong: %q, %q", results[0].Entry.ID, results[1].Entry.ID)
	}
}

func TestTopK_NoCorrelatedMatchesFallsBack(t *testing.T) {
	q := newTestQueryService(t)
	entries := []MemoryEntry{stampedEntry("only", "2026-08-29T00:00:00Z")}
	idx := &fakeIndex{queryFn: func(string) (any, error) {
		return []any{map[string]any{"key": "nobody-home", "score": 0.9}}, nil
	}}

	results, mode := q.TopK(context.Background(), entries, idx, "jazz", 3)
	if mode != ModeRecent || len(results) != 1 {
		t.Fatalf("uncorrelatable matches must degrade to recency: mode=%q n=%d", mode, len(results))
	}
}

func TestTopK_ZeroKReturnsNothing(t *testing.T) {
	q := newTestQueryService(t)
	results, _ := q.TopK(context.Background(), []MemoryEntry{testEntry("", "x")}, nil, "q", 0)
	if len(results) != 0 {
		t.Fatalf("k=0 must return nothing, got %d", len(results))
	}
}

func TestLastPrompts(t *testing.T) {
	prompts := []PromptEntry{
		{Text: "first", Timestamp: "2026-08-01T00:00:00Z"},
		{Text: "third", Timestamp: "2026-08-29T00:00:00Z"},
		{Text: "second", Timestamp: "2026-08-15T00:00:00Z"},
	}

	out := lastPrompts(prompts, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(out))
	}
	if out[0].Text != "third" || out[1].Text != "second" {
		t.Fatalf("order wrong: %q, %q", out[0].Text, out[1].Text)
	}

	if got := lastPrompts(prompts, 10); len(got) != 3 {
		t.Fatalf("over-ask must clamp to list size, got %d", len(got))
	}
	if got := lastPrompts(nil, 5); len(got) != 0 {
		t.Fatalf("empty list must return empty, got %d", len(got))
	}
}

func TestRemoveByTimestamp(t *testing.T) {
	entries := []MemoryEntry{
		stampedEntry("keep", "2026-08-01T00:00:00Z"),
		stampedEntry("drop", "2026-08-15T00:00:00Z"),
	}

	out, removed := removeByTimestamp(entries, "2026-08-15T00:00:00Z")
	if !removed || len(out) != 1 || out[0].Memory != "keep" {
		t.Fatalf("removed=%v out=%v", removed, out)
	}

	same, removed := removeByTimestamp(out, "2000-01-01T00:00:00Z")
	if removed || len(same) != 1 {
		t.Fatalf("unknown timestamp must remove nothing")
	}
}

func TestRetrievalCacheInvalidateIsNilSafe(t *testing.T) {
	var rc *retrievalCache
	rc.invalidate()
	if _, ok := rc.get("q", 3); ok {
		t.Fatalf("nil cache must never report a hit")
	}
	rc.put("q", 3, nil, ModeRecent)
}
