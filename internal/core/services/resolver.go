package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// ResolveRequest is the input to ProviderResolver.Resolve.
type ResolveRequest struct {
	// ExplicitID is a ProviderConfig id bound by a bot or knowledge base.
	ExplicitID string

	// Kind narrows resolution to one provider family when ExplicitID is empty.
	Kind domain.ProviderKind

	// Model is the requested model. Empty selects the config's or kind's default.
	Model string

	Owner   domain.Owner
	Purpose domain.Purpose

	// AllowFallback permits any active credential of a supported kind as a
	// last resort. Never honoured for embeddings.
	AllowFallback bool
}

// ProviderResolver decides which provider and credential serve a call.
// It is read-only against the credential store.
type ProviderResolver struct {
	credentials driven.CredentialStore
	registry    *ProviderRegistry
}

// NewProviderResolver creates a resolver.
func NewProviderResolver(credentials driven.CredentialStore, registry *ProviderRegistry) *ProviderResolver {
	return &ProviderResolver{credentials: credentials, registry: registry}
}

// Resolve returns the binding for req. Resolution order, first match wins:
//  1. ExplicitID in the workspace scope
//  2. ExplicitID in the user scope
//  3. Kind: a local kind needs no credential, otherwise the first active
//     config of that kind in the workspace then user scope
//  4. AllowFallback (generation only): the first active user config of any
//     registered kind
//
// Returns an error wrapping domain.ErrNotFound when nothing matches; when a
// hosted Kind simply has no credential it also wraps domain.ErrCredentialMissing.
func (r *ProviderResolver) Resolve(ctx context.Context, req ResolveRequest) (domain.ProviderBinding, error) {
	if req.ExplicitID != "" {
		cfg, err := r.lookupExplicit(ctx, req.ExplicitID, req.Owner)
		if err != nil {
			return domain.ProviderBinding{}, err
		}
		if cfg != nil {
			if !r.registry.Supports(cfg.Kind, req.Purpose) {
				return domain.ProviderBinding{}, fmt.Errorf("%w: provider %s (%s) cannot serve %s",
					domain.ErrConfiguration, cfg.ID, cfg.Kind, req.Purpose)
			}
			return bindingFor(cfg, pickModel(cfg, req.Model, req.Purpose, false)), nil
		}
		logger.Debug("resolver: provider %s not found for user=%s workspace=%s",
			req.ExplicitID, req.Owner.UserID, req.Owner.WorkspaceID)
	}

	if req.ExplicitID == "" && req.Kind != "" {
		binding, err := r.resolveKind(ctx, req)
		if err == nil || !errors.Is(err, domain.ErrNotFound) || !r.fallbackAllowed(req) {
			return binding, err
		}
	}

	if r.fallbackAllowed(req) {
		configs, err := r.listActive(ctx, domain.ScopeUser, req.Owner.UserID)
		if err != nil {
			return domain.ProviderBinding{}, err
		}
		for i := range configs {
			cfg := &configs[i]
			if !r.registry.Supports(cfg.Kind, req.Purpose) {
				continue
			}
			logger.Debug("resolver: falling back to %s (%s)", cfg.DisplayName, cfg.Kind)
			return bindingFor(cfg, pickModel(cfg, req.Model, req.Purpose, true)), nil
		}
	}

	return domain.ProviderBinding{}, fmt.Errorf("%w: no %s provider resolvable (explicit=%q kind=%q)",
		domain.ErrNotFound, req.Purpose, req.ExplicitID, req.Kind)
}

func (r *ProviderResolver) fallbackAllowed(req ResolveRequest) bool {
	return req.AllowFallback && req.Purpose == domain.PurposeGeneration
}

// lookupExplicit checks the workspace scope then the user scope.
// A nil config with nil error means the id exists in neither.
func (r *ProviderResolver) lookupExplicit(
	ctx context.Context, id string, owner domain.Owner,
) (*domain.ProviderConfig, error) {
	scopes := []struct {
		scope   domain.Scope
		scopeID string
	}{
		{domain.ScopeWorkspace, owner.WorkspaceID},
		{domain.ScopeUser, owner.UserID},
	}
	for _, s := range scopes {
		if s.scopeID == "" {
			continue
		}
		cfg, err := r.credentials.Lookup(ctx, s.scope, s.scopeID, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up provider %s: %w", id, err)
		}
		if !cfg.IsActive {
			continue
		}
		return cfg, nil
	}
	return nil, nil
}

func (r *ProviderResolver) resolveKind(ctx context.Context, req ResolveRequest) (domain.ProviderBinding, error) {
	if !r.registry.Supports(req.Kind, req.Purpose) {
		return domain.ProviderBinding{}, fmt.Errorf("%w: %w: %s cannot serve %s",
			domain.ErrConfiguration, domain.ErrUnsupportedType, req.Kind, req.Purpose)
	}

	scopes := []struct {
		scope   domain.Scope
		scopeID string
	}{
		{domain.ScopeWorkspace, req.Owner.WorkspaceID},
		{domain.ScopeUser, req.Owner.UserID},
	}
	for _, s := range scopes {
		if s.scopeID == "" {
			continue
		}
		configs, err := r.listActive(ctx, s.scope, s.scopeID)
		if err != nil {
			return domain.ProviderBinding{}, err
		}
		for i := range configs {
			cfg := &configs[i]
			if cfg.Kind == req.Kind && cfg.ServesModel(req.Model) {
				return bindingFor(cfg, pickModel(cfg, req.Model, req.Purpose, false)), nil
			}
		}
	}

	if !req.Kind.RequiresCredential() {
		return domain.ProviderBinding{
			Kind:  req.Kind,
			Model: defaultModel(req.Kind, req.Model, req.Purpose),
		}, nil
	}

	return domain.ProviderBinding{}, fmt.Errorf("%w: %w: %s", domain.ErrNotFound, domain.ErrCredentialMissing, req.Kind)
}

func (r *ProviderResolver) listActive(
	ctx context.Context, scope domain.Scope, scopeID string,
) ([]domain.ProviderConfig, error) {
	configs, err := r.credentials.ListActive(ctx, scope, scopeID)
	if err != nil {
		return nil, fmt.Errorf("listing %s providers: %w", scope, err)
	}
	return configs, nil
}

func bindingFor(cfg *domain.ProviderConfig, model string) domain.ProviderBinding {
	return domain.ProviderBinding{
		ConfigID:           cfg.ID,
		Kind:               cfg.Kind,
		Model:              model,
		BaseURL:            cfg.BaseURL,
		Credential:         cfg.Credential,
		RequiresCredential: cfg.Kind.RequiresCredential(),
		Scope:              cfg.Scope,
		ScopeID:            cfg.ScopeID,
	}
}

// pickModel chooses the model for a config. A fallback config only honours
// the requested model when it explicitly lists it, so a model name from one
// family is never sent to another.
func pickModel(cfg *domain.ProviderConfig, requested string, purpose domain.Purpose, fallback bool) string {
	if requested != "" {
		if !fallback || (len(cfg.Models) > 0 && cfg.ServesModel(requested)) {
			return requested
		}
	}
	if len(cfg.Models) > 0 {
		return cfg.Models[0]
	}
	return defaultModel(cfg.Kind, "", purpose)
}

func defaultModel(kind domain.ProviderKind, requested string, purpose domain.Purpose) string {
	if requested != "" {
		return requested
	}
	if purpose == domain.PurposeEmbedding {
		return domain.DefaultEmbeddingModel(kind)
	}
	return domain.DefaultGenerationModelFor(kind)
}
