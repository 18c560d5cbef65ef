// Package anthropic provides a Claude generation provider.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// DefaultMaxTokens is sent when the caller does not set a limit.
const DefaultMaxTokens = 1024

// Provider generates chat completions with the Anthropic Messages API.
type Provider struct {
	mu      sync.Mutex
	clients map[string]*anthropic.Client
}

// New creates an Anthropic generation provider.
func New() *Provider {
	return &Provider{clients: make(map[string]*anthropic.Client)}
}

// Kind returns domain.ProviderAnthropic.
func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderAnthropic
}

// Chat sends the conversation. A leading system message becomes the system prompt.
func (p *Provider) Chat(
	ctx context.Context, messages []domain.ChatMessage, b domain.ProviderBinding, opts domain.ChatOptions,
) (string, error) {
	if b.Credential == "" {
		return "", fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, domain.ProviderAnthropic)
	}

	system, turns := convertMessages(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no user message to send", domain.ErrInvalidInput)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.Model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client(b).Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", domain.ErrProvider, err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic returned no text", domain.ErrProvider)
	}
	return reply.String(), nil
}

func (p *Provider) client(b domain.ProviderBinding) *anthropic.Client {
	key := b.Credential + "|" + b.BaseURL

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}
	opts := []option.RequestOption{option.WithAPIKey(b.Credential)}
	if b.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.BaseURL))
	}
	c := anthropic.NewClient(opts...)
	p.clients[key] = &c
	return &c
}

// convertMessages splits out system messages and maps the rest to Claude turns.
func convertMessages(messages []domain.ChatMessage) (string, []anthropic.MessageParam) {
	var (
		system []string
		turns  = make([]anthropic.MessageParam, 0, len(messages))
	)
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n\n"), turns
}
