// Package google provides a Gemini generation provider.
package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/custodia-labs/ragline/internal/adapters/driven/genaiclient"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Provider generates chat completions with the Gemini API.
type Provider struct {
	clients *genaiclient.Pool
}

// New creates a Gemini generation provider sharing clients from pool.
func New(pool *genaiclient.Pool) *Provider {
	return &Provider{clients: pool}
}

// Kind returns domain.ProviderGoogle.
func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderGoogle
}

// Chat sends the conversation. System messages become the system instruction.
func (p *Provider) Chat(
	ctx context.Context, messages []domain.ChatMessage, b domain.ProviderBinding, opts domain.ChatOptions,
) (string, error) {
	client, err := p.clients.Client(ctx, b)
	if err != nil {
		return "", err
	}

	system, contents := convertMessages(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("%w: no user message to send", domain.ErrInvalidInput)
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, b.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", domain.ErrProvider, err)
	}

	var reply strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				reply.WriteString(part.Text)
			}
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned no text", domain.ErrProvider)
	}
	return reply.String(), nil
}

func convertMessages(messages []domain.ChatMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
