package models

import "time"

// Knowledge document lifecycle states.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

// KnowledgeDocument is one ingested reference document. ContentSHA256 is
// unique: re-ingesting identical text short-circuits against the existing
// document. A failed document may be retried in place under the same ID.
type KnowledgeDocument struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Source         string                 `json:"source,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ContentSHA256  string                 `json:"contentSha256,omitempty"`
	Status         string                 `json:"status"`
	EmbeddingModel string                 `json:"embeddingModel,omitempty"`
	EmbeddingDim   int                    `json:"embeddingDim,omitempty"`
	Error          string                 `json:"error,omitempty"`
	IngestedAt     time.Time              `json:"ingestedAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt,omitempty"`
}

// KnowledgeChunk is one embeddable slice of a document. ChunkIndex values are
// dense 0..N-1 per document and unique within it.
type KnowledgeChunk struct {
	ID          string    `json:"id"`
	DocID       string    `json:"docId"`
	Text        string    `json:"text"`
	ChunkIndex  int       `json:"chunkIndex"`
	ChunkSHA256 string    `json:"chunkSha256,omitempty"`
	TokenCount  int       `json:"tokenCount,omitempty"`
	Embedding   []float32 `json:"-"`
	IndexedAt   time.Time `json:"indexedAt,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// KnowledgeSearchResult is one semantic search hit over ready chunks. Score is
// cosine similarity (1 - cosine distance), higher is better.
type KnowledgeSearchResult struct {
	ChunkID    string    `json:"chunkId"`
	Text       string    `json:"text"`
	DocID      string    `json:"docId"`
	DocTitle   string    `json:"docTitle"`
	DocSource  string    `json:"docSource,omitempty"`
	IngestedAt time.Time `json:"ingestedAt,omitempty"`
	Score      float64   `json:"score"`
}
