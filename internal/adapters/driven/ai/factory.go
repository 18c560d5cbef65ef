// Package ai provides factory functions for the provider and vector index adapters.
package ai

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	googleembed "github.com/custodia-labs/ragline/internal/adapters/driven/embedding/google"
	ollamaembed "github.com/custodia-labs/ragline/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragline/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/ragline/internal/adapters/driven/genaiclient"
	anthropicllm "github.com/custodia-labs/ragline/internal/adapters/driven/llm/anthropic"
	googlellm "github.com/custodia-labs/ragline/internal/adapters/driven/llm/google"
	ollamallm "github.com/custodia-labs/ragline/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragline/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragline/internal/adapters/driven/ratelimit"
	badgerindex "github.com/custodia-labs/ragline/internal/adapters/driven/vector/badger"
	memoryindex "github.com/custodia-labs/ragline/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/ragline/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// pingTimeout is the maximum time to wait for vector index connectivity.
const pingTimeout = 5 * time.Second

// ProviderOptions configures provider construction.
type ProviderOptions struct {
	// OllamaURL is the default Ollama endpoint for bindings without a base URL.
	OllamaURL string

	// RateLimitRPS throttles hosted embedding providers. Zero disables it.
	RateLimitRPS float64

	// Timeout bounds each generation request.
	Timeout time.Duration
}

// Providers holds one implementation per provider kind and purpose.
type Providers struct {
	Embedding  []driven.EmbeddingProvider
	Generation []driven.GenerationProvider
}

// NewProviders creates every embedding and generation provider. Hosted
// embedding providers are rate limited when opts.RateLimitRPS is positive.
func NewProviders(opts ProviderOptions) *Providers {
	pool := genaiclient.NewPool()
	limit := ratelimit.Config{RequestsPerSecond: opts.RateLimitRPS}

	return &Providers{
		Embedding: []driven.EmbeddingProvider{
			ollamaembed.New(ollamaembed.Config{BaseURL: opts.OllamaURL}),
			ratelimit.Wrap(openaiembed.New(), limit),
			ratelimit.Wrap(googleembed.New(pool), limit),
			openaiembed.NewCustom(),
		},
		Generation: []driven.GenerationProvider{
			ollamallm.New(ollamallm.Config{BaseURL: opts.OllamaURL, Timeout: opts.Timeout}),
			openaillm.New(opts.Timeout),
			anthropicllm.New(),
			googlellm.New(pool),
			openaillm.NewCustom(opts.Timeout),
		},
	}
}

// Embedder returns the embedding provider for kind, or nil.
func (p *Providers) Embedder(kind domain.ProviderKind) driven.EmbeddingProvider {
	for _, e := range p.Embedding {
		if e.Kind() == kind {
			return e
		}
	}
	return nil
}

// Generator returns the generation provider for kind, or nil.
func (p *Providers) Generator(kind domain.ProviderKind) driven.GenerationProvider {
	for _, g := range p.Generation {
		if g.Kind() == kind {
			return g
		}
	}
	return nil
}

// NewVectorIndex creates the configured vector index backend and ensures its
// collection exists. dataDir holds the badger files. An unreachable Qdrant
// server is not fatal: ingestion marks chunks skipped until it returns.
func NewVectorIndex(ctx context.Context, settings domain.VectorSettings, dataDir string) (driven.VectorIndex, error) {
	var index driven.VectorIndex
	switch settings.Backend {
	case domain.VectorBackendMemory:
		index = memoryindex.New()

	case domain.VectorBackendBadger, "":
		dir := ""
		if dataDir != "" {
			dir = filepath.Join(dataDir, "vectors")
		}
		idx, err := badgerindex.Open(dir)
		if err != nil {
			return nil, err
		}
		index = idx

	case domain.VectorBackendQdrant:
		index = qdrant.New(qdrant.Config{
			URL:        settings.QdrantURL,
			APIKey:     settings.APIKey,
			Collection: settings.Collection,
			Dimensions: settings.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrConfiguration, settings.Backend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := index.EnsureCollection(pingCtx); err != nil {
		logger.Warn("vector index (%s) unavailable: %v", settings.Backend, err)
	}
	return index, nil
}
