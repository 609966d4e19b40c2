package memory

// MemoryType classifies an extracted statement.
type MemoryType string

const (
	TypePreference MemoryType = "preference"
	TypeDislike    MemoryType = "dislike"
	TypeHobby      MemoryType = "hobby"
	TypeTrait      MemoryType = "trait"
	TypeBelief     MemoryType = "belief"
	TypeGoal       MemoryType = "goal"
)

// ValidType reports whether t is one of the recognized memory types.
func ValidType(t MemoryType) bool {
	switch t {
	case TypePreference, TypeDislike, TypeHobby, TypeTrait, TypeBelief, TypeGoal:
		return true
	}
	return false
}

// PromptEntry is one captured user prompt. The prompt list is append-only:
// entries are never mutated and never deleted.
type PromptEntry struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Origin    string `json:"origin"`
}

// MemoryEntry is a consolidated memory statement. ID is the vector index
// key and stays empty until a vector insert succeeds; an entry without an
// ID was stored local-only and cannot be found by semantic search.
type MemoryEntry struct {
	ID        string     `json:"id,omitempty"`
	Type      MemoryType `json:"type"`
	Prompt    string     `json:"prompt"`
	Memory    string     `json:"memory"`
	Tags      []string   `json:"tags,omitempty"`
	Timestamp string     `json:"timestamp"`
	Origin    string     `json:"origin"`
}

// CandidateStatement is one draft statement from the extraction collaborator.
type CandidateStatement struct {
	Type      MemoryType `json:"type"`
	Statement string     `json:"statement"`
	Tags      []string   `json:"tags"`
}

// SimilarityMatch is a transient best match picked from index query
// results. It is never persisted.
type SimilarityMatch struct {
	Key      string
	Score    float64
	Text     string
	Metadata map[string]any
}

// VectorRecord is the payload handed to the vector index on insert. The
// engine never inspects or recomputes embeddings; the key returned by the
// index is its only handle.
type VectorRecord struct {
	Text     string
	Metadata map[string]string
}

// MemoryRef identifies a memory for deletion. Timestamp is the record-store
// correlation key since an entry may lack an ID if vectorization failed.
type MemoryRef struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RecalledMemory is one retrieval hit from the query service.
type RecalledMemory struct {
	Entry MemoryEntry `json:"entry"`
	Score float64     `json:"score,omitempty"`
}

// Request statuses surfaced to callers.
const (
	StatusSuccess       = "success"
	StatusSavedNoVector = "saved_without_vectorization"
	StatusError         = "error"
)

// Retrieval modes reported by TopKMemories.
const (
	ModeRecent   = "recent"
	ModeSemantic = "semantic"
)
