package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QueryService answers recall requests over a memory list and an optional
// vector index. When semantic search is unavailable or comes back empty it
// degrades to a recency ordering rather than failing the request.
type QueryService struct {
	timeout time.Duration
	cache   *retrievalCache
	log     *zap.SugaredLogger
}

func NewQueryService(timeout time.Duration, cache *retrievalCache, log *zap.SugaredLogger) *QueryService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &QueryService{timeout: timeout, cache: cache, log: log}
}

// TopK returns up to k memories relevant to the query, most relevant first,
// and the mode that produced them. It never returns an error: every failure
// path falls back to the most recent memories.
func (q *QueryService) TopK(ctx context.Context, entries []MemoryEntry, index VectorIndex, query string, k int) ([]RecalledMemory, string) {
	if k <= 0 {
		return nil, ModeRecent
	}
	if hit, ok := q.cache.get(query, k); ok {
		return hit.Results, hit.Mode
	}

	results, mode := q.recall(ctx, entries, index, query, k)
	q.cache.put(query, k, results, mode)
	return results, mode
}

func (q *QueryService) recall(ctx context.Context, entries []MemoryEntry, index VectorIndex, query string, k int) ([]RecalledMemory, string) {
	if index == nil || strings.TrimSpace(query) == "" {
		return recentMemories(entries, k), ModeRecent
	}

	qctx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	raw, err := index.Query(qctx, query)
	if err != nil {
		q.log.Warnw("vector query failed, falling back to recency", "error", err)
		return recentMemories(entries, k), ModeRecent
	}

	matches := parseMatches(raw)
	results := make([]RecalledMemory, 0, k)
	seen := make(map[int]struct{}, k)
	for _, match := range matches {
		idx := correlateMatch(entries, match)
		if idx < 0 {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		results = append(results, RecalledMemory{Entry: entries[idx], Score: match.Score})
		if len(results) == k {
			break
		}
	}
	if len(results) == 0 {
		return recentMemories(entries, k), ModeRecent
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, ModeSemantic
}

// recentMemories returns up to k entries ordered newest first.
func recentMemories(entries []MemoryEntry, k int) []RecalledMemory {
	ordered := make([]MemoryEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp > ordered[j].Timestamp })
	if k > len(ordered) {
		k = len(ordered)
	}
	results := make([]RecalledMemory, 0, k)
	for _, entry := range ordered[:k] {
		results = append(results, RecalledMemory{Entry: entry})
	}
	return results
}

// lastPrompts returns up to n prompts ordered newest first.
func lastPrompts(prompts []PromptEntry, n int) []PromptEntry {
	ordered := make([]PromptEntry, len(prompts))
	copy(ordered, prompts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp > ordered[j].Timestamp })
	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[:n]
}

// removeByTimestamp drops every entry carrying the given timestamp and
// reports whether anything was removed.
func removeByTimestamp(entries []MemoryEntry, ts string) ([]MemoryEntry, bool) {
	out := entries[:0]
	removed := false
	for _, entry := range entries {
		if entry.Timestamp == ts {
			removed = true
			continue
		}
		out = append(out, entry)
	}
	return out, removed
}
