package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// GenerationProvider produces chat completions.
// Errors wrap domain.ErrProvider.
type GenerationProvider interface {
	// Kind returns the provider family this implementation serves.
	Kind() domain.ProviderKind

	// Chat sends the conversation and returns the assistant reply.
	// A leading system message, if present, is passed as the system prompt.
	Chat(ctx context.Context, messages []domain.ChatMessage, binding domain.ProviderBinding,
		opts domain.ChatOptions) (string, error)
}
