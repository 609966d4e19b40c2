package memory

import (
	"context"
	"encoding/json"
	"fmt"
)

// Logical record-store keys.
const (
	storageKeyPrompts  = "prompts"
	storageKeyMemories = "memories"
)

// RecordStore is the persistent key-value map backing prompt and memory
// lists. Values are opaque bytes; this package stores JSON lists under the
// "prompts" and "memories" keys.
type RecordStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// VectorIndex is the opaque similarity index. Insert returns the index's
// key in whatever shape the backend produces (a scalar or an object);
// Query returns results in an unspecified shape that the similarity
// resolver normalizes. The engine never inspects embeddings.
type VectorIndex interface {
	Insert(ctx context.Context, rec VectorRecord) (any, error)
	Query(ctx context.Context, text string) (any, error)
	Delete(ctx context.Context, key any) error
}

// KeyLister is optionally implemented by indexes that can enumerate their
// keys; the reconciler uses it to sweep orphan vectors.
type KeyLister interface {
	ListKeys(ctx context.Context) ([]string, error)
}

func loadPrompts(ctx context.Context, store RecordStore) ([]PromptEntry, error) {
	raw, ok, err := store.Get(ctx, storageKeyPrompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if !ok {
		return []PromptEntry{}, nil
	}
	var out []PromptEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	return out, nil
}

func savePrompts(ctx context.Context, store RecordStore, prompts []PromptEntry) error {
	raw, err := json.Marshal(prompts)
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	if err := store.Set(ctx, storageKeyPrompts, raw); err != nil {
		return fmt.Errorf("save prompts: %w", err)
	}
	return nil
}

func loadMemories(ctx context.Context, store RecordStore) ([]MemoryEntry, error) {
	raw, ok, err := store.Get(ctx, storageKeyMemories)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	if !ok {
		return []MemoryEntry{}, nil
	}
	var out []MemoryEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	return out, nil
}

func saveMemories(ctx context.Context, store RecordStore, entries []MemoryEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	if err := store.Set(ctx, storageKeyMemories, raw); err != nil {
		return fmt.Errorf("save memories: %w", err)
	}
	return nil
}
