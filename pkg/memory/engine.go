package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Engine applies the replace-or-insert decision for candidate memories.
//
// Each candidate resolves against the working list with a fixed priority:
// exact normalized-text match first, then registered logical opposite,
// then semantic match via the vector index. Exact matching is unambiguous
// and free; the conflict table handles "I like X" followed by "actually I
// dislike X" deterministically, without trusting similarity scoring to
// rank a true opposite above a near-paraphrase; semantic matching catches
// the paraphrases neither of the first two can see.
type Engine struct {
	threshold float64
	log       *zap.SugaredLogger
}

func NewEngine(threshold float64, log *zap.SugaredLogger) *Engine {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{threshold: threshold, log: log}
}

// Consolidate merges candidates into existing and returns the new memory
// list, ready for a single persist by the caller. Candidates are resolved
// strictly in input order, so each one sees the effects of those before
// it. At most one prior entry is removed per candidate. A nil index
// short-circuits to a local-only append: entries are kept without IDs and
// no vectors are written.
func (e *Engine) Consolidate(ctx context.Context, existing, candidates []MemoryEntry, index VectorIndex) []MemoryEntry {
	working := append([]MemoryEntry(nil), existing...)

	for _, mem := range candidates {
		normalized := normalizeText(mem.Memory)
		if normalized == "" {
			e.log.Debugw("skipping empty candidate statement", "prompt", mem.Prompt)
			continue
		}
		if index == nil {
			working = append(working, mem)
			continue
		}

		prior := e.resolvePrior(ctx, working, mem, normalized, index)
		if prior >= 0 {
			old := working[prior]
			working = append(working[:prior], working[prior+1:]...)
			if old.ID != "" {
				// Best effort; a leftover vector is harmless.
				deleteVector(ctx, index, old.ID, e.log)
			}
			e.log.Infow("superseding memory", "old", old.Memory, "new", mem.Memory)
		}

		mem.ID = insertVector(ctx, index, mem.Memory, vectorMetadata(mem), e.log)
		working = append(working, mem)
	}

	return dedupeEntries(working)
}

// resolvePrior returns the index of the working-list entry the candidate
// supersedes, or -1.
func (e *Engine) resolvePrior(ctx context.Context, working []MemoryEntry, mem MemoryEntry, normalized string, index VectorIndex) int {
	if i := findByNormalizedText(working, normalized); i >= 0 {
		return i
	}
	if conflict, ok := oppositeStatement(normalized); ok {
		if i := findByNormalizedText(working, conflict); i >= 0 {
			return i
		}
	}
	if match, ok := findTopSimilar(ctx, index, mem.Memory, e.threshold, e.log); ok {
		return correlateMatch(working, match)
	}
	return -1
}

func findByNormalizedText(entries []MemoryEntry, normalized string) int {
	for i, entry := range entries {
		if normalizeText(entry.Memory) == normalized {
			return i
		}
	}
	return -1
}

// correlateMatch locates the local entry a similarity match refers to.
// Key equality is preferred; matches whose returned text equals a local
// entry's normalized memory, or whose source-prompt metadata equals a
// local entry's prompt, are also accepted, since index-returned keys
// cannot always be trusted.
func correlateMatch(entries []MemoryEntry, match SimilarityMatch) int {
	if match.Key != "" {
		for i, entry := range entries {
			if entry.ID != "" && entry.ID == match.Key {
				return i
			}
		}
	}
	matchText := normalizeText(match.Text)
	sourcePrompt := ""
	if match.Metadata != nil {
		sourcePrompt, _ = match.Metadata["sourcePrompt"].(string)
	}
	for i, entry := range entries {
		if matchText != "" && normalizeText(entry.Memory) == matchText {
			return i
		}
		if sourcePrompt != "" && entry.Prompt == sourcePrompt {
			return i
		}
	}
	return -1
}

func vectorMetadata(mem MemoryEntry) map[string]string {
	return map[string]string{
		"type":         string(mem.Type),
		"tags":         strings.Join(mem.Tags, ","),
		"timestamp":    mem.Timestamp,
		"origin":       mem.Origin,
		"sourcePrompt": mem.Prompt,
	}
}

// dedupeEntries collapses the list by ID (or normalized text for entries
// never vectorized), keeping the last-seen entry per key. Defends against
// same-batch duplicates the per-candidate resolution might not catch.
func dedupeEntries(entries []MemoryEntry) []MemoryEntry {
	seen := make(map[string]int, len(entries))
	out := make([]MemoryEntry, 0, len(entries))
	for _, entry := range entries {
		key := entry.ID
		if key == "" {
			key = normalizeText(entry.Memory)
		}
		if i, ok := seen[key]; ok {
			out[i] = entry
			continue
		}
		seen[key] = len(out)
		out = append(out, entry)
	}
	return out
}
