// Package openai provides a generation provider for the OpenAI chat
// completions API and OpenAI-compatible endpoints, built on langchaingo.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second
)

// noToken is sent to OpenAI-compatible servers that do not authenticate.
const noToken = "none"

// Provider produces chat completions over the OpenAI wire format. Clients
// are cached per base URL and credential; the model is chosen per call.
type Provider struct {
	kind    domain.ProviderKind
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	clients map[string]*openai.LLM
}

// New creates an OpenAI generation provider.
func New(timeout time.Duration) *Provider {
	return newProvider(domain.ProviderOpenAI, DefaultBaseURL, timeout)
}

// NewCustom creates a provider for self-hosted OpenAI-compatible servers.
// Bindings must carry a base URL.
func NewCustom(timeout time.Duration) *Provider {
	return newProvider(domain.ProviderCustom, "", timeout)
}

func newProvider(kind domain.ProviderKind, baseURL string, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Provider{
		kind:    kind,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		clients: make(map[string]*openai.LLM),
	}
}

// Kind returns the provider family this instance serves.
func (p *Provider) Kind() domain.ProviderKind {
	return p.kind
}

// Chat sends the conversation and returns the first choice.
func (p *Provider) Chat(
	ctx context.Context, messages []domain.ChatMessage, b domain.ProviderBinding, opts domain.ChatOptions,
) (string, error) {
	if !b.HasCredential() {
		return "", fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, p.kind)
	}
	client, err := p.clientFor(b)
	if err != nil {
		return "", err
	}

	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(messageType(m.Role), m.Content)
	}

	callOpts := []llms.CallOption{llms.WithModel(b.Model)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}

	resp, err := client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrProvider, p.kind, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no response choices returned", domain.ErrProvider, p.kind)
	}
	return resp.Choices[0].Content, nil
}

func (p *Provider) clientFor(b domain.ProviderBinding) (*openai.LLM, error) {
	baseURL := strings.TrimRight(b.BaseURL, "/")
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
	key := baseURL + "|" + token

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithHTTPClient(p.http),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s client: %w", domain.ErrConfiguration, p.kind, err)
	}
	p.clients[key] = c
	return c, nil
}

func messageType(role domain.Role) llms.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
