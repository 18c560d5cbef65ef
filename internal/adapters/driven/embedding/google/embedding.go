// Package google provides a Gemini embedding provider.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/custodia-labs/ragline/internal/adapters/driven/genaiclient"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Provider generates embeddings with the Gemini API.
type Provider struct {
	clients *genaiclient.Pool

	// Dimensions truncates output when positive.
	Dimensions int32
}

// New creates a Gemini embedding provider sharing clients from pool.
func New(pool *genaiclient.Pool) *Provider {
	return &Provider{clients: pool}
}

// Kind returns domain.ProviderGoogle.
func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderGoogle
}

// GenerateEmbedding embeds text with the binding's model.
func (p *Provider) GenerateEmbedding(ctx context.Context, text string, b domain.ProviderBinding) ([]float32, error) {
	client, err := p.clients.Client(ctx, b)
	if err != nil {
		return nil, err
	}

	var cfg *genai.EmbedContentConfig
	if p.Dimensions > 0 {
		dims := p.Dimensions
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	result, err := client.Models.EmbedContent(ctx, b.Model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embeddings: %w", domain.ErrProvider, err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embeddings", domain.ErrProvider)
	}
	return result.Embeddings[0].Values, nil
}
