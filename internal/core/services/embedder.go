package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Embedding is a vector together with the provider and model that produced it.
type Embedding struct {
	Vector []float32
	Kind   domain.ProviderKind
	Model  string
}

// Embedder embeds text for a knowledge base. Ingestion and querying share it
// so questions land in the same vector space as the chunks they search.
type Embedder struct {
	resolver *ProviderResolver
	registry *ProviderRegistry
	cache    driven.EmbeddingCache
}

// NewEmbedder creates an Embedder. cache may be nil.
func NewEmbedder(resolver *ProviderResolver, registry *ProviderRegistry, cache driven.EmbeddingCache) *Embedder {
	return &Embedder{resolver: resolver, registry: registry, cache: cache}
}

// Embed embeds text with the knowledge base's embedding binding. When the
// primary google or openai provider fails only because no credential is
// configured, the other one is tried exactly once with its default model.
func (e *Embedder) Embed(ctx context.Context, kb *domain.KnowledgeBase, text string) (Embedding, error) {
	emb, err := e.attempt(ctx, kb.Owner(), kb.EmbeddingProviderID, kb.EmbeddingProvider, kb.EmbeddingModel, text)
	if err == nil || !domain.IsCredentialMissing(err) {
		return emb, err
	}

	fallback, ok := emb.Kind.FallbackKind()
	if !ok {
		return emb, err
	}
	logger.Warn("embedding: %s has no credential, falling back to %s", emb.Kind, fallback)

	fbEmb, fbErr := e.attempt(ctx, kb.Owner(), "", fallback, domain.DefaultEmbeddingModel(fallback), text)
	if fbErr != nil {
		return fbEmb, fmt.Errorf("fallback to %s after %w: %w", fallback, err, fbErr)
	}
	return fbEmb, nil
}

// EmbedQuery embeds a question, serving repeats from the cache. Only
// embeddings from the primary binding are cached.
func (e *Embedder) EmbedQuery(ctx context.Context, kb *domain.KnowledgeBase, query string) (Embedding, error) {
	key := QueryCacheKey(kb.EmbeddingProvider, kb.EmbeddingModel, query)
	if e.cache != nil {
		if vec, ok := e.cache.Get(key); ok {
			logger.Debug("embedding: cache hit for %s", key)
			return Embedding{Vector: vec, Kind: kb.EmbeddingProvider, Model: kb.EmbeddingModel}, nil
		}
	}

	emb, err := e.Embed(ctx, kb, query)
	if err != nil {
		return emb, err
	}
	if e.cache != nil && emb.Kind == kb.EmbeddingProvider && emb.Model == kb.EmbeddingModel {
		e.cache.Set(key, emb.Vector)
	}
	return emb, nil
}

// QueryCacheKey builds the cache key embedding:<provider>:<model>:<base64(query) truncated to 100>.
func QueryCacheKey(kind domain.ProviderKind, model, query string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(query))
	if len(encoded) > 100 {
		encoded = encoded[:100]
	}
	return fmt.Sprintf("embedding:%s:%s:%s", kind, model, encoded)
}

// attempt runs one resolve-and-embed round. The returned Embedding always
// carries the kind that was attempted, even on error.
func (e *Embedder) attempt(
	ctx context.Context, owner domain.Owner, explicitID string,
	kind domain.ProviderKind, model, text string,
) (Embedding, error) {
	result := Embedding{Kind: kind, Model: model}

	binding, err := e.resolver.Resolve(ctx, ResolveRequest{
		ExplicitID: explicitID,
		Kind:       kind,
		Model:      model,
		Owner:      owner,
		Purpose:    domain.PurposeEmbedding,
	})
	if err != nil {
		if domain.IsCredentialMissing(err) {
			return result, fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		if errors.Is(err, domain.ErrConfiguration) {
			return result, err
		}
		return result, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	result.Kind = binding.Kind
	result.Model = binding.Model

	if !binding.HasCredential() {
		return result, fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, binding.Kind)
	}

	provider, err := e.registry.Embedder(binding.Kind)
	if err != nil {
		return result, err
	}

	vec, err := provider.GenerateEmbedding(ctx, text, binding)
	if err != nil {
		return result, err
	}
	if len(vec) == 0 {
		return result, fmt.Errorf("%w: %s returned an empty embedding", domain.ErrProvider, binding.Kind)
	}
	result.Vector = vec
	return result, nil
}
