package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

// Config configures the memory subsystem.
type Config struct {
	Workspace           string
	SimilarityThreshold float64
	TopK                int
	LastN               int
	QueryTimeout        time.Duration
	CacheTTL            time.Duration
	ReconcileSchedule   string
	EmbeddingModel      string
	Extractor           Extractor
}

// SaveResult is the outcome of a SavePrompt call.
type SaveResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Extracted int    `json:"extracted"`
}

// Service orchestrates prompt capture, consolidation, retrieval and
// deletion over a record store and an optional vector index. The index is
// best effort: when it cannot be opened the service runs local-only and
// every save reports saved_without_vectorization.
type Service struct {
	cfg       Config
	store     RecordStore
	index     VectorIndex
	engine    *Engine
	queries   *QueryService
	extractor Extractor
	cache     *retrievalCache
	locks     keyedMutex
	log       *zap.SugaredLogger

	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func NewService(cfg Config, log *zap.SugaredLogger) (*Service, error) {
	if strings.TrimSpace(cfg.Workspace) == "" {
		return nil, fmt.Errorf("memory workspace is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.LastN <= 0 {
		cfg.LastN = 5
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 3 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if strings.TrimSpace(cfg.ReconcileSchedule) == "" {
		cfg.ReconcileSchedule = "*/10 * * * *"
	}
	if !gronx.New().IsValid(cfg.ReconcileSchedule) {
		return nil, fmt.Errorf("invalid reconcile schedule %q", cfg.ReconcileSchedule)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = HeuristicExtractor{}
	}

	store, err := NewSQLiteStore(filepath.Join(cfg.Workspace, "state", "aether.db"))
	if err != nil {
		return nil, err
	}

	// Index init failure downgrades to local-only mode instead of failing
	// service startup.
	var index VectorIndex
	embedder := NewEmbedder(cfg.EmbeddingModel)
	chromem, err := NewChromemIndex(filepath.Join(cfg.Workspace, "state", "vectors"), embedder, log.Named("index"))
	if err != nil {
		log.Warnw("vector index unavailable, running local-only", "error", err)
	} else {
		index = chromem
	}

	cache, err := newRetrievalCache(cfg.CacheTTL)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := &Service{
		cfg:       cfg,
		store:     store,
		index:     index,
		engine:    NewEngine(cfg.SimilarityThreshold, log.Named("engine")),
		queries:   NewQueryService(cfg.QueryTimeout, cache, log.Named("query")),
		extractor: cfg.Extractor,
		cache:     cache,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	svc.wg.Add(1)
	go svc.runWorker()
	return svc, nil
}

func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}

// SavePrompt appends the prompt to the prompt list, extracts candidate
// statements and consolidates them into the memory list. Extraction
// failures are tolerated: the prompt is already saved by the time
// extraction runs. Store write failures are the only error status.
func (s *Service) SavePrompt(ctx context.Context, prompt, origin string) SaveResult {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return SaveResult{Status: StatusError, Message: "prompt is empty"}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.appendPrompt(ctx, PromptEntry{Text: prompt, Timestamp: now, Origin: origin}); err != nil {
		s.log.Errorw("persist prompt failed", "error", err)
		return SaveResult{Status: StatusError, Message: err.Error()}
	}

	candidates, err := s.extractor.Extract(ctx, prompt)
	if err != nil {
		s.log.Warnw("extraction failed, prompt saved without memories", "error", err)
		candidates = nil
	}

	batch := make([]MemoryEntry, 0, len(candidates))
	for _, cand := range candidates {
		if err := validateCandidate(cand); err != nil {
			s.log.Debugw("discarding candidate", "type", cand.Type, "error", err)
			continue
		}
		batch = append(batch, MemoryEntry{
			Type:      cand.Type,
			Prompt:    prompt,
			Memory:    strings.TrimSpace(cand.Statement),
			Tags:      cand.Tags,
			Timestamp: now,
			Origin:    origin,
		})
	}

	if len(batch) > 0 {
		if err := s.consolidate(ctx, batch); err != nil {
			s.log.Errorw("persist memories failed", "error", err)
			return SaveResult{Status: StatusError, Message: err.Error()}
		}
		s.cache.invalidate()
	}

	if s.index == nil && len(batch) > 0 {
		return SaveResult{Status: StatusSavedNoVector, Message: ErrIndexUnavailable.Error(), Extracted: len(batch)}
	}
	return SaveResult{Status: StatusSuccess, Extracted: len(batch)}
}

func (s *Service) appendPrompt(ctx context.Context, entry PromptEntry) error {
	unlock := s.locks.lock(storageKeyPrompts)
	defer unlock()

	prompts, err := loadPrompts(ctx, s.store)
	if err != nil {
		return err
	}
	prompts = append(prompts, entry)
	return savePrompts(ctx, s.store, prompts)
}

func (s *Service) consolidate(ctx context.Context, batch []MemoryEntry) error {
	unlock := s.locks.lock(storageKeyMemories)
	defer unlock()

	existing, err := loadMemories(ctx, s.store)
	if err != nil {
		return err
	}
	merged := s.engine.Consolidate(ctx, existing, batch, s.index)
	return saveMemories(ctx, s.store, merged)
}

// LastPrompts returns the n most recent prompts, newest first. n<=0 uses
// the configured default.
func (s *Service) LastPrompts(ctx context.Context, n int) ([]PromptEntry, error) {
	if n <= 0 {
		n = s.cfg.LastN
	}
	prompts, err := loadPrompts(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return lastPrompts(prompts, n), nil
}

// TopKMemories returns up to k memories relevant to the query plus the
// retrieval mode. k<=0 uses the configured default.
func (s *Service) TopKMemories(ctx context.Context, query string, k int) ([]RecalledMemory, string, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}
	entries, err := loadMemories(ctx, s.store)
	if err != nil {
		return nil, "", err
	}
	results, mode := s.queries.TopK(ctx, entries, s.index, query, k)
	return results, mode, nil
}

// DeleteMemory removes the memory identified by ref. The vector delete is
// best effort; the record-store removal keyed by timestamp always runs.
func (s *Service) DeleteMemory(ctx context.Context, ref MemoryRef) error {
	if strings.TrimSpace(ref.Timestamp) == "" {
		return fmt.Errorf("memory timestamp is required")
	}
	if ref.ID != "" && s.index != nil {
		deleteVector(ctx, s.index, ref.ID, s.log)
	}

	unlock := s.locks.lock(storageKeyMemories)
	defer unlock()

	entries, err := loadMemories(ctx, s.store)
	if err != nil {
		return err
	}
	remaining, removed := removeByTimestamp(entries, ref.Timestamp)
	if !removed {
		return nil
	}
	if err := saveMemories(ctx, s.store, remaining); err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

func (s *Service) runWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	gron := gronx.New()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			due, err := gron.IsDue(s.cfg.ReconcileSchedule, now)
			if err != nil || !due {
				continue
			}
			if err := s.Reconcile(context.Background()); err != nil {
				s.log.Warnw("reconcile pass failed", "error", err)
			}
		}
	}
}

// keyedMutex serializes read-modify-write cycles per storage key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
