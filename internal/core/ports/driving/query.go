package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// QueryService answers questions against knowledge bases.
type QueryService interface {
	// Answer retrieves context and generates a grounded answer.
	Answer(ctx context.Context, question string, hints domain.ScopeHints,
		opts domain.AnswerOptions) (*domain.Answer, error)

	// Retrieve returns the scored context for a question without generating.
	Retrieve(ctx context.Context, question string, knowledgeBaseID string,
		opts domain.AnswerOptions) ([]domain.Source, error)

	// Chat talks to a bot without any knowledge base context.
	Chat(ctx context.Context, message string, hints domain.ScopeHints, model string) (string, error)
}
