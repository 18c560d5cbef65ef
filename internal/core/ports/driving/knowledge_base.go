package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// CreateKnowledgeBaseRequest holds the fields for a new knowledge base.
type CreateKnowledgeBaseRequest struct {
	Name                string              `validate:"required"`
	Description         string
	WorkspaceID         string
	CreatedBy           string              `validate:"required"`
	AIProviderID        string
	RAGModel            string
	EmbeddingProviderID string
	EmbeddingProvider   domain.ProviderKind `validate:"required"`
	EmbeddingModel      string
	ChunkSize           int                 `validate:"gte=0"`
	ChunkOverlap        int                 `validate:"gte=0"`
}

// KnowledgeBaseService manages knowledge bases, bots and provider configs.
type KnowledgeBaseService interface {
	CreateKnowledgeBase(ctx context.Context, req CreateKnowledgeBaseRequest) (*domain.KnowledgeBase, error)
	GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error)

	// DeleteKnowledgeBase removes the knowledge base with its documents and vectors.
	DeleteKnowledgeBase(ctx context.Context, id string) error

	// SetEmbedding switches the embedding binding. It returns
	// domain.ErrEmbeddingModelMismatch when vectors from another model exist,
	// unless force is set; forced switches leave stale vectors to rebuild.
	SetEmbedding(
		ctx context.Context, id string, kind domain.ProviderKind, model string, force bool,
	) (*domain.KnowledgeBase, error)

	SaveBot(ctx context.Context, bot *domain.Bot) error
	ListBots(ctx context.Context) ([]domain.Bot, error)

	AddProvider(ctx context.Context, cfg *domain.ProviderConfig) error
	ListProviders(ctx context.Context) ([]domain.ProviderConfig, error)
	RemoveProvider(ctx context.Context, id string) error
}
