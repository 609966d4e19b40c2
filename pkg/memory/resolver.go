package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultSimilarityThreshold is the minimum score for a semantic match.
// The comparison is inclusive: a score of exactly 0.75 counts.
const DefaultSimilarityThreshold = 0.75

// Known field names, probed in order, for the various index backends.
var (
	resultListFields = []string{"results", "matches", "items", "data"}
	scoreFields      = []string{"score", "similarity", "cosineSimilarity"}
	matchKeyFields   = []string{"key", "id"}
	matchTextFields  = []string{"text", "content", "memory"}
)

// findTopSimilar queries the index and returns the best match at or above
// threshold. Similarity is a best-effort optimization: query errors and
// unrecognized result shapes are logged and reported as no-match, never
// propagated.
func findTopSimilar(ctx context.Context, index VectorIndex, query string, threshold float64, log *zap.SugaredLogger) (SimilarityMatch, bool) {
	if index == nil || strings.TrimSpace(query) == "" {
		return SimilarityMatch{}, false
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	raw, err := index.Query(ctx, query)
	if err != nil {
		log.Warnw("similarity query failed", "error", err)
		return SimilarityMatch{}, false
	}

	matches := parseMatches(raw)
	if len(matches) == 0 {
		return SimilarityMatch{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if matches[0].Score >= threshold {
		return matches[0], true
	}
	return SimilarityMatch{}, false
}

// parseMatches normalizes the heterogeneous query payloads the index may
// produce into a flat match list. Unrecognized shapes fail open to empty.
func parseMatches(raw any) []SimilarityMatch {
	entries := resultEntries(raw)
	out := make([]SimilarityMatch, 0, len(entries))
	for _, entry := range entries {
		m, ok := parseMatch(entry)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func resultEntries(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, e := range v {
			out = append(out, e)
		}
		return out
	case map[string]any:
		for _, field := range resultListFields {
			if inner, ok := v[field]; ok {
				return resultEntries(inner)
			}
		}
		return nil
	default:
		return nil
	}
}

func parseMatch(entry any) (SimilarityMatch, bool) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return SimilarityMatch{}, false
	}

	m := SimilarityMatch{}
	for _, f := range scoreFields {
		if s, ok := asFloat(fields[f]); ok {
			m.Score = s
			break
		}
	}
	for _, f := range matchKeyFields {
		if k := keyToString(fields[f]); k != "" {
			m.Key = k
			break
		}
	}
	for _, f := range matchTextFields {
		if t, ok := fields[f].(string); ok && t != "" {
			m.Text = t
			break
		}
	}
	if meta, ok := fields["metadata"].(map[string]any); ok {
		m.Metadata = meta
	}
	if m.Key == "" && m.Text == "" {
		return SimilarityMatch{}, false
	}
	return m, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// keyToString renders a scalar index key as a string handle. Integral
// floats lose their trailing ".0" so JSON-decoded numeric keys round-trip.
func keyToString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case json.Number:
		return k.String()
	default:
		return ""
	}
}
