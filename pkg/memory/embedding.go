package memory

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder converts text to a vector for similarity search. Both built-in
// embedders are deterministic local models: good enough for near-duplicate
// detection without a model download.
type Embedder interface {
	ModelID() string
	Embed(text string) []float32
}

const (
	defaultEmbeddingModel = "aether-chargram-384-v1"
	hashEmbeddingModel    = "aether-hash-256-v1"
)

// NewEmbedder returns the embedder for a configured model name. Unknown
// names fall back to the chargram default.
func NewEmbedder(name string) Embedder {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case hashEmbeddingModel, "hash", "hash-256":
		return &hashEmbedder{dims: 256, modelID: hashEmbeddingModel}
	default:
		return &chargramEmbedder{dims: 384, modelID: defaultEmbeddingModel}
	}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-]+`)

type hashEmbedder struct {
	dims    int
	modelID string
}

func (e *hashEmbedder) ModelID() string { return e.modelID }

func (e *hashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		weight := float32(1 + (len(token) / 8))
		vec[idx] += sign * weight
	}
	normalizeVector(vec)
	return vec
}

type chargramEmbedder struct {
	dims    int
	modelID string
}

func (e *chargramEmbedder) ModelID() string { return e.modelID }

func (e *chargramEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dims)
	normalized := normalizeText(text)
	if normalized == "" {
		return vec
	}
	window := "#" + normalized + "#"
	for i := 0; i+3 <= len(window); i++ {
		gram := window[i : i+3]
		h := fnv.New64a()
		_, _ = h.Write([]byte(gram))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		vec[idx] += 1
	}
	for _, token := range tokenize(normalized) {
		h := fnv.New64a()
		_, _ = h.Write([]byte("tok:" + token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		vec[idx] += 1.25
	}
	normalizeVector(vec)
	return vec
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	matches := tokenPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	return matches
}

func vectorNorm(vec []float32) float64 {
	if len(vec) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

func normalizeVector(vec []float32) {
	n := vectorNorm(vec)
	if n == 0 {
		return
	}
	inv := float32(1.0 / n)
	for i := range vec {
		vec[i] *= inv
	}
}
