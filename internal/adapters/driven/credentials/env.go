// Package credentials provides the environment-variable credential tier and
// a chain that places it after a persistent store.
package credentials

import (
	"context"
	"errors"
	"os"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure the stores implement the interface.
var (
	_ driven.CredentialStore = (*EnvStore)(nil)
	_ driven.CredentialStore = (*Chain)(nil)
)

// EnvVars maps provider kinds to the variable holding their API key.
var EnvVars = map[domain.ProviderKind]string{
	domain.ProviderGoogle:    "GOOGLE_API_KEY",
	domain.ProviderOpenAI:    "OPENAI_API_KEY",
	domain.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// envOrder is the order env configs are listed in.
var envOrder = []domain.ProviderKind{domain.ProviderGoogle, domain.ProviderOpenAI, domain.ProviderAnthropic}

// EnvID returns the config ID used for kind's environment credential.
func EnvID(kind domain.ProviderKind) string {
	return "env-" + string(kind)
}

// EnvStore exposes API keys from the environment as user-scope configs
// visible to every user.
type EnvStore struct {
	getenv func(string) string
}

// NewEnvStore reads from the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{getenv: os.Getenv}
}

// NewEnvStoreWith reads variables through getenv.
func NewEnvStoreWith(getenv func(string) string) *EnvStore {
	return &EnvStore{getenv: getenv}
}

// Lookup returns the env config with id for any user scope.
func (s *EnvStore) Lookup(_ context.Context, scope domain.Scope, scopeID, id string) (*domain.ProviderConfig, error) {
	if scope != domain.ScopeUser {
		return nil, domain.ErrNotFound
	}
	for _, kind := range envOrder {
		if EnvID(kind) != id {
			continue
		}
		if cfg, ok := s.config(kind, scopeID); ok {
			return cfg, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListActive returns one config per set variable, for user scope only.
func (s *EnvStore) ListActive(_ context.Context, scope domain.Scope, scopeID string) ([]domain.ProviderConfig, error) {
	if scope != domain.ScopeUser {
		return nil, nil
	}
	var configs []domain.ProviderConfig
	for _, kind := range envOrder {
		if cfg, ok := s.config(kind, scopeID); ok {
			configs = append(configs, *cfg)
		}
	}
	return configs, nil
}

func (s *EnvStore) config(kind domain.ProviderKind, scopeID string) (*domain.ProviderConfig, bool) {
	key := s.getenv(EnvVars[kind])
	if key == "" {
		return nil, false
	}
	return &domain.ProviderConfig{
		ID:          EnvID(kind),
		Kind:        kind,
		Scope:       domain.ScopeUser,
		ScopeID:     scopeID,
		DisplayName: EnvVars[kind],
		Credential:  key,
		IsActive:    true,
	}, true
}

// Chain consults stores in order. Lookup returns the first hit; ListActive
// concatenates, so earlier stores win when the resolver picks the first
// config of a kind.
type Chain struct {
	stores []driven.CredentialStore
}

// NewChain creates a chain over stores.
func NewChain(stores ...driven.CredentialStore) *Chain {
	return &Chain{stores: stores}
}

// Lookup returns the first store's match.
func (c *Chain) Lookup(ctx context.Context, scope domain.Scope, scopeID, id string) (*domain.ProviderConfig, error) {
	for _, s := range c.stores {
		cfg, err := s.Lookup(ctx, scope, scopeID, id)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}

// ListActive concatenates every store's active configs.
func (c *Chain) ListActive(ctx context.Context, scope domain.Scope, scopeID string) ([]domain.ProviderConfig, error) {
	var all []domain.ProviderConfig
	for _, s := range c.stores {
		configs, err := s.ListActive(ctx, scope, scopeID)
		if err != nil {
			return nil, err
		}
		all = append(all, configs...)
	}
	return all, nil
}
