package memory

import (
	"context"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var numericKeyPattern = regexp.MustCompile(`^[0-9]+$`)

// deleteVector removes the vector keyed by key, coercing all-digit keys to
// the index's native integer type. Never returns an error: false means the
// old vector stays behind as a harmless orphan and the caller may proceed.
func deleteVector(ctx context.Context, index VectorIndex, key string, log *zap.SugaredLogger) bool {
	if index == nil || key == "" {
		return false
	}
	var native any = key
	if numericKeyPattern.MatchString(key) {
		if n, err := strconv.ParseInt(key, 10, 64); err == nil {
			native = n
		}
	}
	if err := index.Delete(ctx, native); err != nil {
		log.Warnw("vector delete failed", "key", key, "error", err)
		return false
	}
	return true
}

// Field names an index insert result may carry its key under.
var insertKeyFields = []string{"id", "key", "insertedId"}

// insertVector inserts text with metadata and returns the storage key. The
// index may hand the key back as a bare scalar or inside an object; when
// nothing extractable comes back (including insert failure) a locally
// generated identifier is substituted so the record is never left keyless.
func insertVector(ctx context.Context, index VectorIndex, text string, meta map[string]string, log *zap.SugaredLogger) string {
	raw, err := index.Insert(ctx, VectorRecord{Text: text, Metadata: meta})
	if err != nil {
		log.Warnw("vector insert failed, assigning local key", "error", err)
		return uuid.NewString()
	}

	if key := keyToString(raw); key != "" {
		return key
	}
	if fields, ok := raw.(map[string]any); ok {
		for _, f := range insertKeyFields {
			if key := keyToString(fields[f]); key != "" {
				return key
			}
		}
	}
	log.Warnw("vector insert returned no extractable key, assigning local key")
	return uuid.NewString()
}
