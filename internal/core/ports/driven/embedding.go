package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// EmbeddingProvider generates vector embeddings for text.
// Implementations must fail with an error wrapping domain.ErrProvider, and
// additionally domain.ErrCredentialMissing when a required credential is absent.
type EmbeddingProvider interface {
	// Kind returns the provider family this implementation serves.
	Kind() domain.ProviderKind

	// GenerateEmbedding embeds text using the binding's model and credential.
	GenerateEmbedding(ctx context.Context, text string, binding domain.ProviderBinding) ([]float32, error)
}

// EmbeddingCache caches query embeddings keyed by provider, model and text.
type EmbeddingCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vector []float32)
	Close()
}
