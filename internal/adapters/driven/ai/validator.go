package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.ProviderValidator = (*ConfigValidator)(nil)

// validateTimeout bounds the probe request.
const validateTimeout = 20 * time.Second

// ConfigValidator checks a provider config by sending one small request.
type ConfigValidator struct {
	providers *Providers
}

// NewConfigValidator creates a validator over providers.
func NewConfigValidator(providers *Providers) *ConfigValidator {
	return &ConfigValidator{providers: providers}
}

// Validate embeds a probe string when the kind supports embeddings,
// otherwise asks for a one-token completion.
func (v *ConfigValidator) Validate(ctx context.Context, cfg *domain.ProviderConfig) error {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	binding := domain.ProviderBinding{
		ConfigID:           cfg.ID,
		Kind:               cfg.Kind,
		BaseURL:            cfg.BaseURL,
		Credential:         cfg.Credential,
		RequiresCredential: cfg.Kind.RequiresCredential(),
	}
	if len(cfg.Models) > 0 {
		binding.Model = cfg.Models[0]
	}

	if e := v.providers.Embedder(cfg.Kind); e != nil {
		if binding.Model == "" {
			binding.Model = domain.DefaultEmbeddingModel(cfg.Kind)
		}
		if _, err := e.GenerateEmbedding(ctx, "ping", binding); err != nil {
			return fmt.Errorf("validating %s: %w", cfg.Kind, err)
		}
		return nil
	}

	g := v.providers.Generator(cfg.Kind)
	if g == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedType, cfg.Kind)
	}
	if binding.Model == "" {
		binding.Model = domain.DefaultGenerationModelFor(cfg.Kind)
	}
	_, err := g.Chat(ctx, []domain.ChatMessage{{Role: domain.RoleUser, Content: "ping"}}, binding,
		domain.ChatOptions{MaxTokens: 1})
	if err != nil {
		return fmt.Errorf("validating %s: %w", cfg.Kind, err)
	}
	return nil
}
