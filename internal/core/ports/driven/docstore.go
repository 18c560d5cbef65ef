package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// DocumentStore persists documents.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns documents in a knowledge base, newest first.
	ListDocuments(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkStore persists chunks and their embedding status.
// Each chunk row is written by exactly one worker at a time.
type ChunkStore interface {
	// SaveChunks stores or updates chunks in one transaction.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// UpdateChunk persists a single chunk's status fields.
	UpdateChunk(ctx context.Context, chunk *domain.Chunk) error

	// GetChunk retrieves a chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ListChunks returns a document's chunks ordered by index.
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListChunksByKnowledgeBase returns all chunks of a knowledge base,
	// ordered by document then index.
	ListChunksByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]domain.Chunk, error)

	// DeleteChunks removes all chunks of a document.
	DeleteChunks(ctx context.Context, documentID string) error
}

// KnowledgeBaseStore persists knowledge bases.
type KnowledgeBaseStore interface {
	SaveKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

// BotStore persists bots.
type BotStore interface {
	SaveBot(ctx context.Context, bot *domain.Bot) error
	GetBot(ctx context.Context, id string) (*domain.Bot, error)
	ListBots(ctx context.Context) ([]domain.Bot, error)
	DeleteBot(ctx context.Context, id string) error
}

// JobStore persists terminal jobs so history survives restarts.
type JobStore interface {
	SaveJob(ctx context.Context, job *domain.ProcessingJob) error
	ListJobs(ctx context.Context, knowledgeBaseID string, limit int) ([]domain.ProcessingJob, error)
}
