// Package genaiclient shares Gemini API clients between the google
// embedding and generation providers.
package genaiclient

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// Pool caches one genai.Client per API key.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*genai.Client)}
}

// Client returns the client for the binding's credential, creating it on
// first use. A binding without a credential fails with
// domain.ErrCredentialMissing.
func (p *Pool) Client(ctx context.Context, b domain.ProviderBinding) (*genai.Client, error) {
	if b.Credential == "" {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, domain.ProviderGoogle)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[b.Credential]; ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  b.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if b.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.BaseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %w", domain.ErrConfiguration, err)
	}
	p.clients[b.Credential] = c
	return c, nil
}
