// Package ollama provides an embedding provider backed by a local Ollama instance.
package ollama

import (
	"context"
	"time"

	"github.com/custodia-labs/ragline/internal/adapters/driven/ollamaapi"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultTimeout bounds one embedding request.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the Ollama embedding provider.
type Config struct {
	// BaseURL is used when a binding does not carry one (default: http://localhost:11434).
	BaseURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Provider generates embeddings using Ollama.
type Provider struct {
	client *ollamaapi.Client
}

// New creates an Ollama embedding provider.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Provider{client: ollamaapi.New(cfg.BaseURL, cfg.Timeout)}
}

// Kind returns domain.ProviderOllama.
func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderOllama
}

// GenerateEmbedding embeds text with the binding's model.
func (p *Provider) GenerateEmbedding(ctx context.Context, text string, b domain.ProviderBinding) ([]float32, error) {
	return p.client.Embed(ctx, b.BaseURL, b.Model, text)
}
