package memory

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// retrievalCache memoizes TopK results so repeated identical queries skip
// the vector index round trip. Any write to the memory list invalidates
// the whole cache.
type retrievalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newRetrievalCache(ttl time.Duration) (*retrievalCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init retrieval cache: %w", err)
	}
	return &retrievalCache{cache: c, ttl: ttl}, nil
}

func cacheKey(query string, k int) string {
	return fmt.Sprintf("%d\x00%s", k, normalizeText(query))
}

type cachedRecall struct {
	Results []RecalledMemory
	Mode    string
}

func (rc *retrievalCache) get(query string, k int) (cachedRecall, bool) {
	if rc == nil || rc.cache == nil {
		return cachedRecall{}, false
	}
	v, ok := rc.cache.Get(cacheKey(query, k))
	if !ok {
		return cachedRecall{}, false
	}
	hit, ok := v.(cachedRecall)
	return hit, ok
}

func (rc *retrievalCache) put(query string, k int, results []RecalledMemory, mode string) {
	if rc == nil || rc.cache == nil {
		return
	}
	cost := int64(1 + len(results))
	rc.cache.SetWithTTL(cacheKey(query, k), cachedRecall{Results: results, Mode: mode}, cost, rc.ttl)
}

func (rc *retrievalCache) invalidate() {
	if rc == nil || rc.cache == nil {
		return
	}
	rc.cache.Clear()
}
