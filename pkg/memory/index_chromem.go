package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const chromemCollection = "aether_memories"

// chromemQueryLimit caps how many raw results one index query returns.
const chromemQueryLimit = 16

// ChromemIndex backs VectorIndex with chromem-go, a pure Go embedded
// vector database, persisted under the workspace.
type ChromemIndex struct {
	col *chromem.Collection
	log *zap.SugaredLogger

	// Keys inserted or deleted this process lifetime. chromem has no key
	// enumeration API, so ListKeys only sees keys touched since startup;
	// older orphans are tolerated and swept on the run that touches them.
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewChromemIndex opens (or creates) the persistent vector database at
// path, embedding documents with the given embedder.
func NewChromemIndex(path string, embedder Embedder, log *zap.SugaredLogger) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(text), nil
	}
	col, err := db.GetOrCreateCollection(chromemCollection, map[string]string{"model": embedder.ModelID()}, embedFn)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &ChromemIndex{
		col:  col,
		log:  log,
		keys: make(map[string]struct{}),
	}, nil
}

func (x *ChromemIndex) Insert(ctx context.Context, rec VectorRecord) (any, error) {
	id := uuid.NewString()
	doc := chromem.Document{
		ID:       id,
		Content:  rec.Text,
		Metadata: rec.Metadata,
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}
	x.mu.Lock()
	x.keys[id] = struct{}{}
	x.mu.Unlock()
	return id, nil
}

// Query returns entries shaped {id, score, text, metadata}; the resolver
// does not depend on this exact shape.
func (x *ChromemIndex) Query(ctx context.Context, text string) (any, error) {
	count := x.col.Count()
	if count == 0 {
		return []any{}, nil
	}
	limit := chromemQueryLimit
	if limit > count {
		limit = count
	}

	results, err := x.col.Query(ctx, text, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	x.log.Debugw("vector query", "results", len(results))

	out := make([]any, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		out = append(out, map[string]any{
			"id":       r.ID,
			"score":    float64(r.Similarity),
			"text":     r.Content,
			"metadata": meta,
		})
	}
	return out, nil
}

func (x *ChromemIndex) Delete(ctx context.Context, key any) error {
	id := keyToString(key)
	if id == "" {
		return fmt.Errorf("delete: empty key")
	}
	if err := x.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %q: %w", id, err)
	}
	x.mu.Lock()
	delete(x.keys, id)
	x.mu.Unlock()
	return nil
}

// ListKeys enumerates keys known to this process; see the keys field note.
func (x *ChromemIndex) ListKeys(ctx context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]string, 0, len(x.keys))
	for k := range x.keys {
		out = append(out, k)
	}
	return out, nil
}
