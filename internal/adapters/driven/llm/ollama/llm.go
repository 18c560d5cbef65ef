// Package ollama provides a generation provider backed by a local Ollama instance.
package ollama

import (
	"context"
	"time"

	"github.com/custodia-labs/ragline/internal/adapters/driven/ollamaapi"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// DefaultTimeout bounds one chat request. Local models can be slow to load.
const DefaultTimeout = 120 * time.Second

// Config holds configuration for the Ollama generation provider.
type Config struct {
	// BaseURL is used when a binding does not carry one (default: http://localhost:11434).
	BaseURL string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Provider generates chat completions using Ollama.
type Provider struct {
	client *ollamaapi.Client
}

// New creates an Ollama generation provider.
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

// Chat sends the conversation and returns the reply. System messages are
// passed through as-is; Ollama applies them as the system prompt.
func (p *Provider) Chat(
	ctx context.Context, messages []domain.ChatMessage, b domain.ProviderBinding, opts domain.ChatOptions,
) (string, error) {
	req := ollamaapi.ChatRequest{
		Model:    b.Model,
		Messages: make([]ollamaapi.Message, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = ollamaapi.Message{Role: string(m.Role), Content: m.Content}
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		req.Options = &ollamaapi.Options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature}
	}
	return p.client.Chat(ctx, b.BaseURL, req)
}
