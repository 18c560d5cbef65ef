package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// CredentialStore resolves provider credentials. Decryption, if any, is the
// implementation's concern.
type CredentialStore interface {
	// Lookup returns the config with id stored under scope/scopeID.
	// Returns domain.ErrNotFound if it does not exist there.
	Lookup(ctx context.Context, scope domain.Scope, scopeID, id string) (*domain.ProviderConfig, error)

	// ListActive returns active configs under scope/scopeID, oldest first.
	ListActive(ctx context.Context, scope domain.Scope, scopeID string) ([]domain.ProviderConfig, error)
}

// ProviderConfigStore persists provider configs.
type ProviderConfigStore interface {
	CredentialStore

	// SaveProviderConfig creates or updates a config.
	SaveProviderConfig(ctx context.Context, cfg *domain.ProviderConfig) error

	// ListProviderConfigs returns every stored config.
	ListProviderConfigs(ctx context.Context) ([]domain.ProviderConfig, error)

	// DeleteProviderConfig removes a config by ID.
	DeleteProviderConfig(ctx context.Context, id string) error
}
