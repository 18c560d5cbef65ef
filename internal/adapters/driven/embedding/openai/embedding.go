// Package openai provides an embedding provider for the OpenAI API and
// self-hosted OpenAI-compatible endpoints, built on langchaingo.
package openai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultBaseURL is the OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// noToken is sent to OpenAI-compatible servers that do not authenticate.
const noToken = "none"

// Provider generates embeddings through langchaingo. One langchaingo client
// is kept per distinct base URL, credential and model.
type Provider struct {
	kind    domain.ProviderKind
	baseURL string

	mu        sync.Mutex
	embedders map[string]embeddings.Embedder
}

// New creates an OpenAI embedding provider.
func New() *Provider {
	return newProvider(domain.ProviderOpenAI, DefaultBaseURL)
}

// NewCustom creates a provider for self-hosted OpenAI-compatible endpoints.
// Every binding must carry its own base URL.
func NewCustom() *Provider {
	return newProvider(domain.ProviderCustom, "")
}

func newProvider(kind domain.ProviderKind, baseURL string) *Provider {
	return &Provider{
		kind:      kind,
		baseURL:   baseURL,
		embedders: make(map[string]embeddings.Embedder),
	}
}

// Kind returns the provider family this instance serves.
func (p *Provider) Kind() domain.ProviderKind {
	return p.kind
}

// GenerateEmbedding embeds text with the binding's model and credential.
func (p *Provider) GenerateEmbedding(ctx context.Context, text string, b domain.ProviderBinding) ([]float32, error) {
	if !b.HasCredential() {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, p.kind)
	}

	embedder, err := p.embedderFor(b)
	if err != nil {
		return nil, err
	}

	vec, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s embeddings: %w", domain.ErrProvider, p.kind, err)
	}
	return vec, nil
}

func (p *Provider) embedderFor(b domain.ProviderBinding) (embeddings.Embedder, error) {
	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s provider %s has no base URL", domain.ErrConfiguration, p.kind, b.ConfigID)
	}
	token := b.Credential
	if token == "" {
		token = noToken
	}

	key := strings.Join([]string{baseURL, token, b.Model}, "|")

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.embedders[key]; ok {
		return e, nil
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(b.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s client: %w", domain.ErrConfiguration, p.kind, err)
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s embedder: %w", domain.ErrConfiguration, p.kind, err)
	}
	p.embedders[key] = e
	return e, nil
}
