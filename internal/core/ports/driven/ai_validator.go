package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// ProviderValidator checks that a provider config works by calling the
// provider once.
type ProviderValidator interface {
	Validate(ctx context.Context, cfg *domain.ProviderConfig) error
}
