package memory

import (
	"context"
)

// Reconcile repairs drift between the record store and the vector index.
// Entries that were saved without a vector get re-inserted, and index keys
// with no backing entry are swept when the index can enumerate them.
func (s *Service) Reconcile(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	unlock := s.locks.lock(storageKeyMemories)
	defer unlock()

	entries, err := loadMemories(ctx, s.store)
	if err != nil {
		return err
	}

	repaired := 0
	for i := range entries {
		if entries[i].ID != "" {
			continue
		}
		entries[i].ID = insertVector(ctx, s.index, entries[i].Memory, vectorMetadata(entries[i]), s.log)
		repaired++
	}
	if repaired > 0 {
		if err := saveMemories(ctx, s.store, entries); err != nil {
			return err
		}
		s.cache.invalidate()
		s.log.Infow("re-vectorized memories", "count", repaired)
	}

	s.sweepOrphans(ctx, entries)
	return nil
}

// sweepOrphans deletes index keys that no stored entry references. Indexes
// that cannot list keys are skipped; their orphans are tolerated.
func (s *Service) sweepOrphans(ctx context.Context, entries []MemoryEntry) {
	lister, ok := s.index.(KeyLister)
	if !ok {
		return
	}
	keys, err := lister.ListKeys(ctx)
	if err != nil {
		s.log.Debugw("list index keys failed", "error", err)
		return
	}

	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.ID != "" {
			known[entry.ID] = struct{}{}
		}
	}
	for _, key := range keys {
		if _, ok := known[key]; ok {
			continue
		}
		if deleteVector(ctx, s.index, key, s.log) {
			s.log.Infow("swept orphan vector", "key", key)
		}
	}
}
