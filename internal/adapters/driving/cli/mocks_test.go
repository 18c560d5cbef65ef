package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	kbs       *mockKBService
	ingestion *mockIngestionService
	query     *mockQueryService
	jobs      *mockJobService
	history   *mockJobStore
	sync      *mockSyncService
	settings  *mockSettingsService
	validator *mockValidator
	prompts   *mockPromptStore
}

var current *testServices

// setupTestServices installs fresh mocks and resets every flag.
func setupTestServices() func() {
	ts := &testServices{
		kbs: &mockKBService{
			kbs: map[string]*domain.KnowledgeBase{
				"kb-1": {
					ID: "kb-1", Name: "Docs", CreatedBy: localUser,
					EmbeddingProvider: domain.ProviderOllama, EmbeddingModel: "nomic-embed-text",
					ChunkSize: 1000, ChunkOverlap: 200, TotalDocuments: 2,
					CreatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
				},
			},
		},
		ingestion: &mockIngestionService{
			failNames: make(map[string]bool),
			documents: []domain.Document{
				{ID: "doc-1", KnowledgeBaseID: "kb-1", Name: "guide.md", Status: domain.DocumentCompleted, ChunkCount: 4},
				{ID: "doc-2", KnowledgeBaseID: "kb-1", Name: "broken.pdf", Status: domain.DocumentFailed, Error: "unsupported type"},
			},
		},
		query:     &mockQueryService{},
		jobs:      &mockJobService{},
		history:   &mockJobStore{},
		sync:      &mockSyncService{},
		settings:  newMockSettingsService(),
		validator: &mockValidator{},
		prompts:   &mockPromptStore{prompts: map[string]string{"rag_system": "Be helpful.", "context_preamble": "Context:"}},
	}
	current = ts

	SetServices(Services{
		KnowledgeBases: ts.kbs,
		Ingestion:      ts.ingestion,
		Query:          ts.query,
		Jobs:           ts.jobs,
		History:        ts.history,
		Sync:           ts.sync,
		Settings:       ts.settings,
		Validator:      ts.validator,
		Prompts:        ts.prompts,
	})
	resetFlags(rootCmd)

	return func() {
		resetServices()
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		current = nil
	}
}

// resetFlags restores the defaults of cmd's flags and its children's.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// --- Mock implementations ---

// mockKBService is a mock implementation of driving.KnowledgeBaseService.
type mockKBService struct {
	kbs       map[string]*domain.KnowledgeBase
	bots      []domain.Bot
	providers []domain.ProviderConfig
	created   driving.CreateKnowledgeBaseRequest
	embedded  map[string]bool
	err       error
}

func (m *mockKBService) CreateKnowledgeBase(_ context.Context, req driving.CreateKnowledgeBaseRequest) (*domain.KnowledgeBase, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = req
	kb := &domain.KnowledgeBase{
		ID: "kb-new", Name: req.Name, CreatedBy: req.CreatedBy,
		EmbeddingProvider: req.EmbeddingProvider, EmbeddingModel: req.EmbeddingModel,
		ChunkSize: req.ChunkSize, ChunkOverlap: req.ChunkOverlap,
	}
	if kb.EmbeddingModel == "" {
		kb.EmbeddingModel = "nomic-embed-text"
	}
	m.kbs[kb.ID] = kb
	return kb, nil
}

func (m *mockKBService) GetKnowledgeBase(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	kb, ok := m.kbs[id]
	if !ok {
		return nil, fmt.Errorf("%w: knowledge base %s", domain.ErrNotFound, id)
	}
	return kb, nil
}

func (m *mockKBService) ListKnowledgeBases(_ context.Context) ([]domain.KnowledgeBase, error) {
	var out []domain.KnowledgeBase
	for _, kb := range m.kbs {
		out = append(out, *kb)
	}
	return out, m.err
}

func (m *mockKBService) DeleteKnowledgeBase(_ context.Context, id string) error {
	if _, ok := m.kbs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.kbs, id)
	return nil
}

func (m *mockKBService) SetEmbedding(
	_ context.Context, id string, kind domain.ProviderKind, model string, force bool,
) (*domain.KnowledgeBase, error) {
	kb, ok := m.kbs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.embedded[id] && !force {
		return nil, domain.ErrEmbeddingModelMismatch
	}
	kb.EmbeddingProvider = kind
	kb.EmbeddingModel = model
	return kb, nil
}

func (m *mockKBService) SaveBot(_ context.Context, bot *domain.Bot) error {
	if bot.ID == "" {
		bot.ID = "bot-1"
	}
	m.bots = append(m.bots, *bot)
	return m.err
}

func (m *mockKBService) ListBots(_ context.Context) ([]domain.Bot, error) {
	return m.bots, m.err
}

func (m *mockKBService) AddProvider(_ context.Context, cfg *domain.ProviderConfig) error {
	if m.err != nil {
		return m.err
	}
	if cfg.ID == "" {
		cfg.ID = "prov-1"
	}
	m.providers = append(m.providers, *cfg)
	return nil
}

func (m *mockKBService) ListProviders(_ context.Context) ([]domain.ProviderConfig, error) {
	return m.providers, m.err
}

func (m *mockKBService) RemoveProvider(_ context.Context, id string) error {
	for i, p := range m.providers {
		if p.ID == id {
			m.providers = append(m.providers[:i], m.providers[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// mockIngestionService is a mock implementation of driving.IngestionService.
// Documents whose name is in failNames finish with a failed job.
type mockIngestionService struct {
	mu        sync.Mutex
	requests  []driving.IngestRequest
	jobs      map[string]domain.ProcessingJob
	failNames map[string]bool
	documents []domain.Document
	deleted   []string
	crawl     driving.CrawlRequest
	crawled   []string
	skipped   []string
}

func (m *mockIngestionService) Ingest(_ context.Context, req driving.IngestRequest) (*domain.Document, *domain.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	n := len(m.requests)

	doc := &domain.Document{ID: fmt.Sprintf("doc-%d", n), KnowledgeBaseID: req.KnowledgeBaseID, Name: req.Name, URI: req.Path}
	job := domain.ProcessingJob{
		ID: fmt.Sprintf("job-%d", n), DocumentID: doc.ID, DocumentName: doc.Name,
		KnowledgeBaseID: req.KnowledgeBaseID, Status: domain.JobQueued,
	}
	if m.jobs == nil {
		m.jobs = make(map[string]domain.ProcessingJob)
	}
	m.jobs[job.ID] = job
	return doc, &job, nil
}

// Crawl queues one job per URL in crawled.
func (m *mockIngestionService) Crawl(ctx context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	m.crawl = req
	result := &driving.CrawlResult{Skipped: m.skipped}
	for _, u := range m.crawled {
		doc, job, err := m.Ingest(ctx, driving.IngestRequest{KnowledgeBaseID: req.KnowledgeBaseID, Name: u, SourceURL: u})
		if err != nil {
			return result, err
		}
		result.Documents = append(result.Documents, *doc)
		result.Jobs = append(result.Jobs, *job)
	}
	return result, nil
}

func (m *mockIngestionService) Wait(_ context.Context, jobID string) (*domain.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.failNames[job.DocumentName] {
		job.Status = domain.JobFailed
		job.Error = "extraction failed"
	} else {
		job.Status = domain.JobCompleted
		job.Progress = 100
		job.ProcessedChunks = 3
		job.TotalChunks = 3
	}
	return &job, nil
}

func (m *mockIngestionService) ListDocuments(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, nil
}

func (m *mockIngestionService) DeleteDocument(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIngestionService) Shutdown(_ context.Context) error {
	return nil
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	question string
	hints    domain.ScopeHints
	opts     domain.AnswerOptions
	err      error
}

func (m *mockQueryService) Answer(_ context.Context, question string, hints domain.ScopeHints, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.question, m.hints, m.opts = question, hints, opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Answer{
		Answer: "Rotate keys every month.",
		Model:  "llama3.1",
		Sources: []domain.Source{{
			ChunkID: "c1", DocumentID: "doc-1", ChunkIndex: 2, Score: 0.87,
			Content:  "Keys\nare rotated   monthly.",
			Metadata: map[string]any{"documentName": "security.md"},
		}},
	}, nil
}

func (m *mockQueryService) Retrieve(_ context.Context, _ string, _ string, _ domain.AnswerOptions) ([]domain.Source, error) {
	return nil, m.err
}

func (m *mockQueryService) Chat(_ context.Context, _ string, _ domain.ScopeHints, _ string) (string, error) {
	return "", m.err
}

// mockJobService is a mock implementation of driving.JobService.
type mockJobService struct {
	active []domain.ProcessingJob
	byKB   []domain.ProcessingJob
}

func (m *mockJobService) GetJob(id string) (*domain.ProcessingJob, error) {
	for _, j := range append(m.active, m.byKB...) {
		if j.ID == id {
			return &j, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobService) ListJobs(_ string) []domain.ProcessingJob {
	return m.byKB
}

func (m *mockJobService) ActiveJobs() []domain.ProcessingJob {
	return m.active
}

// mockJobStore is a mock implementation of driven.JobStore.
type mockJobStore struct {
	jobs []domain.ProcessingJob
}

func (m *mockJobStore) SaveJob(_ context.Context, job *domain.ProcessingJob) error {
	m.jobs = append(m.jobs, *job)
	return nil
}

func (m *mockJobStore) ListJobs(_ context.Context, _ string, _ int) ([]domain.ProcessingJob, error) {
	return m.jobs, nil
}

// mockSyncService is a mock implementation of driving.VectorSyncService.
type mockSyncService struct {
	report   driving.VectorReport
	result   driving.SyncResult
	rebuilt  string
	repaired string
}

func (m *mockSyncService) Rebuild(_ context.Context, id string) (*driving.SyncResult, error) {
	m.rebuilt = id
	r := m.result
	return &r, nil
}

func (m *mockSyncService) Verify(_ context.Context, _ string) (*driving.VectorReport, error) {
	r := m.report
	return &r, nil
}

func (m *mockSyncService) SyncMissing(_ context.Context, id string) (*driving.SyncResult, error) {
	m.repaired = id
	r := m.result
	return &r, nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	keys   []string
	values map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		keys: []string{"chunker.size", "embedding.provider", "vector.backend", "vector.qdrant_api_key"},
		values: map[string]string{
			"chunker.size":       "1000",
			"embedding.provider": "ollama",
			"vector.backend":     "badger",
		},
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.AppSettings{EmbeddingProvider: domain.ProviderKind(m.values["embedding.provider"])}
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if _, err := m.Value(key); err != nil {
		return err
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return m.keys
}

func (m *mockSettingsService) Value(key string) (string, error) {
	for _, k := range m.keys {
		if k == key {
			return m.values[key], nil
		}
	}
	return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.AppSettings{}
}

// mockValidator is a mock implementation of driven.ProviderValidator.
type mockValidator struct {
	checked *domain.ProviderConfig
	err     error
}

func (m *mockValidator) Validate(_ context.Context, cfg *domain.ProviderConfig) error {
	m.checked = cfg
	return m.err
}

// mockPromptStore is a mock implementation of driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

func (m *mockPromptStore) Dir() string {
	return "/tmp/ragline/prompts"
}
