package services

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// ProviderRegistry maps provider kinds to their embedding and generation
// implementations. Adding a provider is a registration, not a new switch case.
type ProviderRegistry struct {
	mu         sync.RWMutex
	embedders  map[domain.ProviderKind]driven.EmbeddingProvider
	generators map[domain.ProviderKind]driven.GenerationProvider
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		embedders:  make(map[domain.ProviderKind]driven.EmbeddingProvider),
		generators: make(map[domain.ProviderKind]driven.GenerationProvider),
	}
}

// RegisterEmbedding adds or replaces the embedding provider for its kind.
func (r *ProviderRegistry) RegisterEmbedding(p driven.EmbeddingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[p.Kind()] = p
}

// RegisterGeneration adds or replaces the generation provider for its kind.
func (r *ProviderRegistry) RegisterGeneration(p driven.GenerationProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[p.Kind()] = p
}

// Embedder returns the embedding provider for kind.
func (r *ProviderRegistry) Embedder(kind domain.ProviderKind) (driven.EmbeddingProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.embedders[kind]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %w: no embedding provider registered for %q",
		domain.ErrConfiguration, domain.ErrUnsupportedType, kind)
}

// Generator returns the generation provider for kind.
func (r *ProviderRegistry) Generator(kind domain.ProviderKind) (driven.GenerationProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.generators[kind]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %w: no generation provider registered for %q",
		domain.ErrConfiguration, domain.ErrUnsupportedType, kind)
}

// Supports reports whether kind is registered for purpose.
func (r *ProviderRegistry) Supports(kind domain.ProviderKind, purpose domain.Purpose) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch purpose {
	case domain.PurposeEmbedding:
		_, ok := r.embedders[kind]
		return ok
	case domain.PurposeGeneration:
		_, ok := r.generators[kind]
		return ok
	default:
		return false
	}
}

// Kinds returns the registered kinds for purpose in display order.
func (r *ProviderRegistry) Kinds(purpose domain.Purpose) []domain.ProviderKind {
	var kinds []domain.ProviderKind
	for _, k := range domain.AllProviderKinds {
		if r.Supports(k, purpose) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
