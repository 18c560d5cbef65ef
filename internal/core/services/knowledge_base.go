package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// KnowledgeBaseService manages knowledge bases, bots and provider configs.
type KnowledgeBaseService struct {
	kbs       driven.KnowledgeBaseStore
	bots      driven.BotStore
	docs      driven.DocumentStore
	chunks    driven.ChunkStore
	providers driven.ProviderConfigStore
	index     driven.VectorIndex
	jobs      driving.JobService
	defaults  domain.AppSettings
	validate  *validator.Validate
}

// Ensure KnowledgeBaseService implements the interface.
var _ driving.KnowledgeBaseService = (*KnowledgeBaseService)(nil)

// NewKnowledgeBaseService creates the service. defaults supply chunking and
// embedding settings for requests that leave them unset.
func NewKnowledgeBaseService(
	kbs driven.KnowledgeBaseStore,
	bots driven.BotStore,
	docs driven.DocumentStore,
	chunks driven.ChunkStore,
	providers driven.ProviderConfigStore,
	index driven.VectorIndex,
	jobs driving.JobService,
	defaults domain.AppSettings,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		kbs:       kbs,
		bots:      bots,
		docs:      docs,
		chunks:    chunks,
		providers: providers,
		index:     index,
		jobs:      jobs,
		defaults:  defaults,
		validate:  validator.New(),
	}
}

// CreateKnowledgeBase validates and stores a new knowledge base.
func (s *KnowledgeBaseService) CreateKnowledgeBase(
	ctx context.Context, req driving.CreateKnowledgeBaseRequest,
) (*domain.KnowledgeBase, error) {
	if req.EmbeddingProvider == "" {
		req.EmbeddingProvider = s.defaults.EmbeddingProvider
		if req.EmbeddingModel == "" {
			req.EmbeddingModel = s.defaults.EmbeddingModel
		}
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if !req.EmbeddingProvider.IsValid() || !req.EmbeddingProvider.SupportsEmbedding() {
		return nil, fmt.Errorf("%w: %s cannot produce embeddings", domain.ErrValidation, req.EmbeddingProvider)
	}

	size := firstPositive(req.ChunkSize, s.defaults.Chunker.Size, domain.DefaultChunkSize)
	overlap := req.ChunkOverlap
	if overlap == 0 {
		overlap = s.defaults.Chunker.Overlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrValidation, overlap, size)
	}

	model := req.EmbeddingModel
	if model == "" {
		model = domain.DefaultEmbeddingModel(req.EmbeddingProvider)
	}

	now := time.Now()
	kb := &domain.KnowledgeBase{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		Description:         req.Description,
		WorkspaceID:         req.WorkspaceID,
		CreatedBy:           req.CreatedBy,
		AIProviderID:        req.AIProviderID,
		RAGModel:            req.RAGModel,
		EmbeddingProviderID: req.EmbeddingProviderID,
		EmbeddingProvider:   req.EmbeddingProvider,
		EmbeddingModel:      model,
		ChunkSize:           size,
		ChunkOverlap:        overlap,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.kbs.SaveKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("saving knowledge base: %w", err)
	}
	logger.Info("created knowledge base %s (%s/%s)", kb.Name, kb.EmbeddingProvider, kb.EmbeddingModel)
	return kb, nil
}

// GetKnowledgeBase returns a knowledge base with its document count filled in.
func (s *KnowledgeBaseService) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	kb, err := s.kbs.GetKnowledgeBase(ctx, id)
	if err != nil {
		return nil, err
	}
	if docs, err := s.docs.ListDocuments(ctx, id); err == nil {
		kb.TotalDocuments = len(docs)
	}
	return kb, nil
}

// ListKnowledgeBases returns all knowledge bases with document counts.
func (s *KnowledgeBaseService) ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error) {
	kbs, err := s.kbs.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range kbs {
		if docs, err := s.docs.ListDocuments(ctx, kbs[i].ID); err == nil {
			kbs[i].TotalDocuments = len(docs)
		}
	}
	return kbs, nil
}

// DeleteKnowledgeBase removes vectors, chunks, documents and the knowledge
// base itself. It refuses while any of its documents are processing.
func (s *KnowledgeBaseService) DeleteKnowledgeBase(ctx context.Context, id string) error {
	kb, err := s.kbs.GetKnowledgeBase(ctx, id)
	if err != nil {
		return err
	}
	if s.jobs != nil {
		for _, j := range s.jobs.ActiveJobs() {
			if j.KnowledgeBaseID == id {
				return fmt.Errorf("%w: knowledge base %s has active job %s", domain.ErrInvalidInput, id, j.ID)
			}
		}
	}

	filter := domain.VectorFilter{domain.FieldKnowledgeBaseID: id}
	if err := s.index.DeleteByFilter(ctx, kb.Owner().TenantID(), filter); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	docs, err := s.docs.ListDocuments(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := s.chunks.DeleteChunks(ctx, d.ID); err != nil {
			return fmt.Errorf("deleting chunks for %s: %w", d.ID, err)
		}
		if err := s.docs.DeleteDocument(ctx, d.ID); err != nil {
			return fmt.Errorf("deleting document %s: %w", d.ID, err)
		}
	}
	return s.kbs.DeleteKnowledgeBase(ctx, id)
}

// SetEmbedding rebinds the knowledge base to another embedding provider
// or model. A knowledge base that already holds vectors from another model
// is refused with domain.ErrEmbeddingModelMismatch unless force is set;
// forced switches leave existing vectors in the old space until Rebuild runs.
func (s *KnowledgeBaseService) SetEmbedding(
	ctx context.Context, id string, kind domain.ProviderKind, model string, force bool,
) (*domain.KnowledgeBase, error) {
	if !kind.IsValid() || !kind.SupportsEmbedding() {
		return nil, fmt.Errorf("%w: %s cannot produce embeddings", domain.ErrValidation, kind)
	}
	kb, err := s.kbs.GetKnowledgeBase(ctx, id)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = domain.DefaultEmbeddingModel(kind)
	}
	if kb.EmbeddingProvider == kind && kb.EmbeddingModel == model {
		return kb, nil
	}
	if !force {
		if err := s.checkEmbeddedWith(ctx, kb, model); err != nil {
			return nil, err
		}
	}

	logger.Warn("knowledge base %s: embedding changed from %s/%s to %s/%s, rebuild required",
		kb.Name, kb.EmbeddingProvider, kb.EmbeddingModel, kind, model)
	kb.EmbeddingProvider = kind
	kb.EmbeddingModel = model
	kb.EmbeddingProviderID = ""
	kb.UpdatedAt = time.Now()
	if err := s.kbs.SaveKnowledgeBase(ctx, kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// checkEmbeddedWith fails when any completed chunk of kb was embedded by a
// model other than model.
func (s *KnowledgeBaseService) checkEmbeddedWith(ctx context.Context, kb *domain.KnowledgeBase, model string) error {
	chunks, err := s.chunks.ListChunksByKnowledgeBase(ctx, kb.ID)
	if err != nil {
		return fmt.Errorf("listing chunks of %s: %w", kb.Name, err)
	}
	for _, c := range chunks {
		if c.Status == domain.EmbeddingCompleted && c.EmbeddingModel != model {
			return fmt.Errorf("%w: %s holds vectors from %s, switch with force and rebuild",
				domain.ErrEmbeddingModelMismatch, kb.Name, c.EmbeddingModel)
		}
	}
	return nil
}

// SaveBot validates and stores a bot.
func (s *KnowledgeBaseService) SaveBot(ctx context.Context, bot *domain.Bot) error {
	if bot.Name == "" {
		return fmt.Errorf("%w: bot name is required", domain.ErrValidation)
	}
	if bot.CreatedBy == "" {
		return fmt.Errorf("%w: bot owner is required", domain.ErrValidation)
	}
	for _, id := range bot.KnowledgeBaseIDs {
		if _, err := s.kbs.GetKnowledgeBase(ctx, id); err != nil {
			return fmt.Errorf("bot knowledge base %s: %w", id, err)
		}
	}
	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now()
	}
	return s.bots.SaveBot(ctx, bot)
}

// ListBots returns all bots.
func (s *KnowledgeBaseService) ListBots(ctx context.Context) ([]domain.Bot, error) {
	return s.bots.ListBots(ctx)
}

// AddProvider validates and stores a provider config.
func (s *KnowledgeBaseService) AddProvider(ctx context.Context, cfg *domain.ProviderConfig) error {
	if !cfg.Kind.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, cfg.Kind)
	}
	if cfg.Kind.RequiresCredential() && cfg.Credential == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrValidation, cfg.Kind)
	}
	if cfg.Kind == domain.ProviderCustom && cfg.BaseURL == "" {
		return fmt.Errorf("%w: custom providers need a base URL", domain.ErrValidation)
	}
	if cfg.Scope == "" {
		cfg.Scope = domain.ScopeUser
	}
	if cfg.ScopeID == "" {
		return fmt.Errorf("%w: provider scope id is required", domain.ErrValidation)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Kind.Description()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	return s.providers.SaveProviderConfig(ctx, cfg)
}

// ListProviders returns every stored provider config.
func (s *KnowledgeBaseService) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	return s.providers.ListProviderConfigs(ctx)
}

// RemoveProvider deletes a provider config.
func (s *KnowledgeBaseService) RemoveProvider(ctx context.Context, id string) error {
	return s.providers.DeleteProviderConfig(ctx, id)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
