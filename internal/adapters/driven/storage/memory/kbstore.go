package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.KnowledgeBaseStore  = (*KnowledgeBaseStore)(nil)
	_ driven.BotStore            = (*KnowledgeBaseStore)(nil)
	_ driven.JobStore            = (*JobStore)(nil)
	_ driven.ProviderConfigStore = (*ProviderStore)(nil)
)

// KnowledgeBaseStore keeps knowledge bases and bots in memory.
type KnowledgeBaseStore struct {
	mu   sync.RWMutex
	kbs  map[string]domain.KnowledgeBase
	bots map[string]domain.Bot
}

// NewKnowledgeBaseStore creates an empty store.
func NewKnowledgeBaseStore() *KnowledgeBaseStore {
	return &KnowledgeBaseStore{
		kbs:  make(map[string]domain.KnowledgeBase),
		bots: make(map[string]domain.Bot),
	}
}

func (s *KnowledgeBaseStore) SaveKnowledgeBase(_ context.Context, kb *domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbs[kb.ID] = *kb
	return nil
}

func (s *KnowledgeBaseStore) GetKnowledgeBase(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.kbs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &kb, nil
}

func (s *KnowledgeBaseStore) ListKnowledgeBases(_ context.Context) ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.KnowledgeBase, 0, len(s.kbs))
	for id := range s.kbs {
		result = append(result, s.kbs[id])
	}
	slices.SortFunc(result, func(a, b domain.KnowledgeBase) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return result, nil
}

func (s *KnowledgeBaseStore) DeleteKnowledgeBase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kbs, id)
	return nil
}

func (s *KnowledgeBaseStore) SaveBot(_ context.Context, bot *domain.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := *bot
	b.KnowledgeBaseIDs = slices.Clone(bot.KnowledgeBaseIDs)
	s.bots[bot.ID] = b
	return nil
}

func (s *KnowledgeBaseStore) GetBot(_ context.Context, id string) (*domain.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &bot, nil
}

func (s *KnowledgeBaseStore) ListBots(_ context.Context) ([]domain.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Bot, 0, len(s.bots))
	for id := range s.bots {
		result = append(result, s.bots[id])
	}
	slices.SortFunc(result, func(a, b domain.Bot) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return result, nil
}

func (s *KnowledgeBaseStore) DeleteBot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bots, id)
	return nil
}

// JobStore keeps terminal job history in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs []domain.ProcessingJob
}

// NewJobStore creates an empty job history.
func NewJobStore() *JobStore {
	return &JobStore{}
}

// SaveJob appends or replaces a job by ID.
func (s *JobStore) SaveJob(_ context.Context, job *domain.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == job.ID {
			s.jobs[i] = *job
			return nil
		}
	}
	s.jobs = append(s.jobs, *job)
	return nil
}

// ListJobs returns jobs for a knowledge base (all when empty), newest first.
func (s *JobStore) ListJobs(_ context.Context, knowledgeBaseID string, limit int) ([]domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ProcessingJob
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if knowledgeBaseID != "" && s.jobs[i].KnowledgeBaseID != knowledgeBaseID {
			continue
		}
		result = append(result, s.jobs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ProviderStore keeps provider configs in memory.
type ProviderStore struct {
	mu      sync.RWMutex
	configs []domain.ProviderConfig
}

// NewProviderStore creates a store seeded with configs.
func NewProviderStore(configs ...domain.ProviderConfig) *ProviderStore {
	return &ProviderStore{configs: slices.Clone(configs)}
}

// Lookup returns the config with id under scope/scopeID.
func (s *ProviderStore) Lookup(
	_ context.Context, scope domain.Scope, scopeID, id string,
) (*domain.ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.configs {
		c := s.configs[i]
		if c.ID == id && c.Scope == scope && c.ScopeID == scopeID {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListActive returns active configs under scope/scopeID in insertion order.
func (s *ProviderStore) ListActive(
	_ context.Context, scope domain.Scope, scopeID string,
) ([]domain.ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ProviderConfig
	for i := range s.configs {
		c := s.configs[i]
		if c.IsActive && c.Scope == scope && c.ScopeID == scopeID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *ProviderStore) SaveProviderConfig(_ context.Context, cfg *domain.ProviderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.configs {
		if s.configs[i].ID == cfg.ID {
			s.configs[i] = *cfg
			return nil
		}
	}
	s.configs = append(s.configs, *cfg)
	return nil
}

func (s *ProviderStore) ListProviderConfigs(_ context.Context) ([]domain.ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.configs), nil
}

func (s *ProviderStore) DeleteProviderConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = slices.DeleteFunc(s.configs, func(c domain.ProviderConfig) bool { return c.ID == id })
	return nil
}
