package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

const (
	defaultSystemPrompt = "You are a helpful assistant."
	contextPreamble     = "Use the following context from the knowledge base to answer questions:"

	// perKnowledgeBaseLimit is the topK per knowledge base when a question
	// spans several of them.
	perKnowledgeBaseLimit = 3

	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// RAGEngine answers questions from knowledge base context.
type RAGEngine struct {
	kbs      driven.KnowledgeBaseStore
	bots     driven.BotStore
	embedder *Embedder
	index    driven.VectorIndex
	resolver *ProviderResolver
	registry *ProviderRegistry
	prompts  driven.PromptStore
}

// Ensure RAGEngine implements the interfaces.
var (
	_ driving.QueryService    = (*RAGEngine)(nil)
	_ driven.PromptStoreAware = (*RAGEngine)(nil)
)

// NewRAGEngine creates a query engine.
func NewRAGEngine(
	kbs driven.KnowledgeBaseStore,
	bots driven.BotStore,
	embedder *Embedder,
	index driven.VectorIndex,
	resolver *ProviderResolver,
	registry *ProviderRegistry,
) *RAGEngine {
	return &RAGEngine{
		kbs:      kbs,
		bots:     bots,
		embedder: embedder,
		index:    index,
		resolver: resolver,
		registry: registry,
	}
}

// SetPromptStore overrides the built-in system prompt and context preamble.
func (e *RAGEngine) SetPromptStore(store driven.PromptStore) {
	e.prompts = store
}

// prompt loads name from the prompt store, or returns fallback.
func (e *RAGEngine) prompt(name, fallback string) string {
	if e.prompts == nil {
		return fallback
	}
	p, err := e.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}

// Answer retrieves context from every knowledge base in scope and asks the
// resolved generation provider to answer from it. With knowledge bases in
// scope but no context above the threshold, it answers with
// domain.InsufficientInformationAnswer without calling a provider. With no
// knowledge bases at all it chats without context.
func (e *RAGEngine) Answer(
	ctx context.Context, question string, hints domain.ScopeHints, opts domain.AnswerOptions,
) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	opts = withAnswerDefaults(opts)

	bot, err := e.loadBot(ctx, hints.BotID)
	if err != nil {
		return nil, err
	}

	kbIDs := hints.KnowledgeBaseIDs
	if len(kbIDs) == 0 && bot != nil {
		kbIDs = bot.KnowledgeBaseIDs
	}

	if len(kbIDs) == 0 {
		reply, model, err := e.generate(ctx, bot, nil, hints, opts.Model, e.messages(bot, nil, hints.History, question))
		if err != nil {
			return nil, err
		}
		return &domain.Answer{Answer: reply, Sources: []domain.Source{}, Model: model}, nil
	}

	// 1. Retrieve from each knowledge base
	perKB := opts
	if len(kbIDs) > 1 {
		perKB.Limit = min(opts.Limit, perKnowledgeBaseLimit)
	}
	var (
		kbs     []*domain.KnowledgeBase
		sources []domain.Source
	)
	for _, id := range kbIDs {
		kb, err := e.kbs.GetKnowledgeBase(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("answer: knowledge base %s not found, skipping", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading knowledge base %s: %w", id, err)
		}
		kbs = append(kbs, kb)

		found, err := e.retrieve(ctx, kb, question, perKB)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}

	// 2. Merge, best first
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Score > sources[j].Score })
	if len(sources) > domain.MaxSources {
		sources = sources[:domain.MaxSources]
	}
	if len(sources) == 0 {
		logger.Debug("answer: no context above %.2f for %q", opts.SimilarityThreshold, question)
		return &domain.Answer{Answer: domain.InsufficientInformationAnswer, Sources: []domain.Source{}}, nil
	}

	// 3. Generate
	reply, model, err := e.generate(ctx, bot, kbs, hints, opts.Model, e.messages(bot, sources, hints.History, question))
	if err != nil {
		return nil, err
	}
	return &domain.Answer{Answer: reply, Sources: sources, Model: model}, nil
}

// Retrieve embeds the question with the knowledge base's embedding binding
// and returns hits at or above the threshold. Index failures yield no
// sources; embedding failures are returned.
func (e *RAGEngine) Retrieve(
	ctx context.Context, question, knowledgeBaseID string, opts domain.AnswerOptions,
) ([]domain.Source, error) {
	kb, err := e.kbs.GetKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	return e.retrieve(ctx, kb, question, withAnswerDefaults(opts))
}

func (e *RAGEngine) retrieve(
	ctx context.Context, kb *domain.KnowledgeBase, question string, opts domain.AnswerOptions,
) ([]domain.Source, error) {
	emb, err := e.embedder.EmbedQuery(ctx, kb, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question for %s: %w", kb.Name, err)
	}

	// Vectors from another model live in a different space.
	filter := domain.VectorFilter{
		domain.FieldKnowledgeBaseID: kb.ID,
		domain.FieldEmbeddingModel:  emb.Model,
	}
	hits, err := e.index.Search(ctx, emb.Vector, opts.Limit, kb.Owner().TenantID(), filter)
	if err != nil {
		logger.Warn("search in %s failed: %v", kb.Name, err)
		return []domain.Source{}, nil
	}

	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		if h.Score < opts.SimilarityThreshold {
			continue
		}
		sources = append(sources, domain.Source{
			ChunkID:    h.ID,
			DocumentID: h.Payload.DocumentID,
			ChunkIndex: h.Payload.ChunkIndex,
			Content:    h.Payload.Content,
			Score:      h.Score,
			Metadata:   h.Payload.Metadata,
		})
	}
	logger.Debug("retrieve: %s returned %d hits, %d above %.2f", kb.Name, len(hits), len(sources), opts.SimilarityThreshold)
	return sources, nil
}

// Chat sends a message to the bot's provider without any retrieval.
func (e *RAGEngine) Chat(ctx context.Context, message string, hints domain.ScopeHints, model string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}
	bot, err := e.loadBot(ctx, hints.BotID)
	if err != nil {
		return "", err
	}
	reply, _, err := e.generate(ctx, bot, nil, hints, model, e.messages(bot, nil, hints.History, message))
	return reply, err
}

func (e *RAGEngine) loadBot(ctx context.Context, id string) (*domain.Bot, error) {
	if id == "" {
		return nil, nil
	}
	bot, err := e.bots.GetBot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading bot %s: %w", id, err)
	}
	return bot, nil
}

func (e *RAGEngine) messages(
	bot *domain.Bot, sources []domain.Source, history []domain.ChatMessage, question string,
) []domain.ChatMessage {
	system := e.prompt(driven.PromptRAGSystem, defaultSystemPrompt)
	if bot != nil && bot.SystemPrompt != "" {
		system = bot.SystemPrompt
	}
	if len(sources) > 0 {
		parts := make([]string, len(sources))
		for i, s := range sources {
			parts[i] = fmt.Sprintf("[%d] %s", i+1, s.Content)
		}
		system += "\n\n" + e.prompt(driven.PromptContextPreamble, contextPreamble) + "\n\n" + strings.Join(parts, "\n\n")
	}

	msgs := make([]domain.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: question})
	return msgs
}

// generate resolves the generation binding and calls the provider. It
// returns the reply and the model that produced it.
func (e *RAGEngine) generate(
	ctx context.Context,
	bot *domain.Bot,
	kbs []*domain.KnowledgeBase,
	hints domain.ScopeHints,
	model string,
	msgs []domain.ChatMessage,
) (string, string, error) {
	binding, err := e.resolveGeneration(ctx, bot, kbs, hints, model)
	if err != nil {
		return "", "", err
	}
	if !binding.HasCredential() {
		return "", "", fmt.Errorf("%w: %w: %s", domain.ErrProvider, domain.ErrCredentialMissing, binding.Kind)
	}

	provider, err := e.registry.Generator(binding.Kind)
	if err != nil {
		return "", "", err
	}

	logger.Debug("generate: %s/%s with %d messages", binding.Kind, binding.Model, len(msgs))
	reply, err := provider.Chat(ctx, msgs, binding, domain.ChatOptions{
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", domain.ErrProvider, binding.Kind, err)
	}
	return reply, binding.Model, nil
}

// resolveGeneration walks the binding hierarchy: the bot's provider, then
// each knowledge base's provider, then any active credential of the bot's
// creator (or the caller when there is no bot).
func (e *RAGEngine) resolveGeneration(
	ctx context.Context,
	bot *domain.Bot,
	kbs []*domain.KnowledgeBase,
	hints domain.ScopeHints,
	requested string,
) (domain.ProviderBinding, error) {
	model := requested
	if model == "" && bot != nil {
		model = bot.AIModelName
	}

	type candidate struct {
		id    string
		owner domain.Owner
		model string
	}
	var candidates []candidate
	if bot != nil && bot.AIProviderID != "" {
		candidates = append(candidates, candidate{bot.AIProviderID, bot.Owner(), model})
	}
	for _, kb := range kbs {
		if kb.AIProviderID == "" {
			continue
		}
		m := model
		if m == "" {
			m = kb.RAGModel
		}
		candidates = append(candidates, candidate{kb.AIProviderID, kb.Owner(), m})
	}

	for _, c := range candidates {
		binding, err := e.resolver.Resolve(ctx, ResolveRequest{
			ExplicitID: c.id,
			Model:      c.model,
			Owner:      c.owner,
			Purpose:    domain.PurposeGeneration,
		})
		if err == nil {
			return binding, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ProviderBinding{}, err
		}
	}

	owner := hints.Owner
	if bot != nil {
		owner = domain.Owner{UserID: bot.CreatedBy}
	}
	if owner.UserID != "" {
		if model == "" && len(kbs) > 0 {
			model = kbs[0].RAGModel
		}
		binding, err := e.resolver.Resolve(ctx, ResolveRequest{
			Model:         model,
			Owner:         owner,
			Purpose:       domain.PurposeGeneration,
			AllowFallback: true,
		})
		if err == nil {
			return binding, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ProviderBinding{}, err
		}
	}

	return domain.ProviderBinding{}, fmt.Errorf("%w: no AI provider configured", domain.ErrConfiguration)
}

func withAnswerDefaults(opts domain.AnswerOptions) domain.AnswerOptions {
	if opts.Limit <= 0 {
		opts.Limit = domain.DefaultQueryLimit
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = domain.DefaultThreshold
	}
	return opts
}
