package domain

import "time"

// DocumentStatus is the processing state of a Document.
type DocumentStatus string

// Document processing states.
const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// Document represents an ingested document with metadata.
// A document is only ever written by the single pipeline run that owns it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// KnowledgeBaseID links to the owning KnowledgeBase.
	KnowledgeBaseID string

	// Name is the display name (file name, URL or caller supplied).
	Name string

	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the detected or declared content type.
	MIMEType string

	// Content is the full extracted text before chunking.
	Content string

	// Status is the processing state.
	Status DocumentStatus

	// ChunkCount is the number of chunks produced.
	ChunkCount int

	// Error holds the failure message when Status is failed.
	Error string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmbeddingStatus is the per-chunk embedding state.
type EmbeddingStatus string

// Chunk embedding states. Transitions run pending -> processing -> one of
// completed, failed or skipped.
const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingFailed     EmbeddingStatus = "failed"
	EmbeddingSkipped    EmbeddingStatus = "skipped"
)

// IsTerminal returns true once embedding has finished either way.
func (s EmbeddingStatus) IsTerminal() bool {
	return s == EmbeddingCompleted || s == EmbeddingFailed || s == EmbeddingSkipped
}

// Chunk represents a retrievable unit within a document.
type Chunk struct {
	// ID is the unique identifier for the chunk. It doubles as the vector id.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// KnowledgeBaseID links to the owning KnowledgeBase.
	KnowledgeBaseID string

	// Content is the text content of this chunk.
	Content string

	// Index is the ordinal position within the document.
	Index int

	// StartChar and EndChar are the half-open character window into the source text.
	StartChar int
	EndChar   int

	// TokenCount is an estimate, not a tokenizer result.
	TokenCount int

	// Status is the embedding state.
	Status EmbeddingStatus

	// Error holds the last embedding failure message.
	Error string

	// VectorID is set once the chunk has been written to the vector index.
	VectorID string

	// EmbeddingModel records which model produced the stored vector.
	EmbeddingModel string

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NeedsEmbedding returns true if the chunk has no usable vector yet.
func (c *Chunk) NeedsEmbedding() bool {
	return c.Status != EmbeddingCompleted || c.VectorID == ""
}
