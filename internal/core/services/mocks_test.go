package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/ragline/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingProvider.
type mockEmbedder struct {
	kind  domain.ProviderKind
	calls atomic.Int64

	mu       sync.Mutex
	vectors  map[string][]float32
	fail     map[string]error
	fallback []float32
	bindings []domain.ProviderBinding
}

func newMockEmbedder(kind domain.ProviderKind) *mockEmbedder {
	return &mockEmbedder{
		kind:     kind,
		vectors:  make(map[string][]float32),
		fail:     make(map[string]error),
		fallback: []float32{1, 0, 0},
	}
}

func (m *mockEmbedder) Kind() domain.ProviderKind { return m.kind }

func (m *mockEmbedder) GenerateEmbedding(_ context.Context, text string, b domain.ProviderBinding) ([]float32, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings = append(m.bindings, b)
	if err, ok := m.fail[text]; ok {
		return nil, err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.fallback, nil
}

func (m *mockEmbedder) lastBinding() domain.ProviderBinding {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bindings) == 0 {
		return domain.ProviderBinding{}
	}
	return m.bindings[len(m.bindings)-1]
}

// mockGenerator implements driven.GenerationProvider.
type mockGenerator struct {
	kind  domain.ProviderKind
	reply string
	err   error
	calls atomic.Int64

	mu       sync.Mutex
	messages []domain.ChatMessage
	binding  domain.ProviderBinding
}

func (m *mockGenerator) Kind() domain.ProviderKind { return m.kind }

func (m *mockGenerator) Chat(
	_ context.Context, msgs []domain.ChatMessage, b domain.ProviderBinding, _ domain.ChatOptions,
) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.messages = msgs
	m.binding = b
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// flakyIndex wraps the memory index with injectable failures.
type flakyIndex struct {
	*vectormem.Index
	down      atomic.Bool
	upserts   atomic.Int64
	upsertErr func(id string) error
	searchErr error
}

func newFlakyIndex() *flakyIndex {
	return &flakyIndex{Index: vectormem.New()}
}

func (f *flakyIndex) TestConnection(ctx context.Context) error {
	if f.down.Load() {
		return domain.ErrIndexUnavailable
	}
	return f.Index.TestConnection(ctx)
}

func (f *flakyIndex) Upsert(
	ctx context.Context, id string, vec []float32, p domain.VectorPayload, tenant string,
) (string, error) {
	f.upserts.Add(1)
	if f.down.Load() {
		return "", domain.ErrIndexUnavailable
	}
	if f.upsertErr != nil {
		if err := f.upsertErr(id); err != nil {
			return "", err
		}
	}
	return f.Index.Upsert(ctx, id, vec, p, tenant)
}

func (f *flakyIndex) Search(
	ctx context.Context, vec []float32, topK int, tenant string, filter domain.VectorFilter,
) ([]domain.VectorHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Index.Search(ctx, vec, topK, tenant, filter)
}

// recordingSink implements driven.ProgressSink.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (s *recordingSink) Publish(e domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) statuses(jobID string) []domain.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.JobStatus
	for _, e := range s.events {
		if e.JobID == jobID {
			out = append(out, e.Status)
		}
	}
	return out
}

var errBoom = errors.New("boom")

// stubCrawler hands out a fixed list of pages.
type stubCrawler struct {
	pages []driven.CrawledPage
	opts  driven.CrawlOptions
}

func (c *stubCrawler) Crawl(
	_ context.Context, _ string, opts driven.CrawlOptions, visit func(driven.CrawledPage) error,
) error {
	c.opts = opts
	for _, p := range c.pages {
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

// --- Test environment ---

type testEnv struct {
	registry  *ProviderRegistry
	providers *memory.ProviderStore
	kbs       *memory.KnowledgeBaseStore
	docs      *memory.DocumentStore
	index     *flakyIndex
	embed     *mockEmbedder
	gen       *mockGenerator
	resolver  *ProviderResolver
	embedder  *Embedder
	pipeline  *EmbeddingPipeline
	sink      *recordingSink
	tracker   *JobTracker
}

const (
	testUser      = "user-1"
	testWorkspace = "ws-1"
)

func newTestEnv(t *testing.T, configs ...domain.ProviderConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		registry:  NewProviderRegistry(),
		providers: memory.NewProviderStore(configs...),
		kbs:       memory.NewKnowledgeBaseStore(),
		docs:      memory.NewDocumentStore(),
		index:     newFlakyIndex(),
		embed:     newMockEmbedder(domain.ProviderOllama),
		gen:       &mockGenerator{kind: domain.ProviderOllama, reply: "generated answer"},
		sink:      &recordingSink{},
	}
	env.registry.RegisterEmbedding(env.embed)
	env.registry.RegisterGeneration(env.gen)
	env.resolver = NewProviderResolver(env.providers, env.registry)
	env.embedder = NewEmbedder(env.resolver, env.registry, nil)

	pipeline, err := NewEmbeddingPipeline(env.embedder, env.index, env.docs,
		WithBatchSize(2), WithBatchDelay(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(pipeline.Close)
	env.pipeline = pipeline

	env.tracker = NewJobTracker(env.sink)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.tracker.Shutdown(ctx)
	})
	return env
}

// newKB stores a knowledge base embedding with the local ollama provider.
func (env *testEnv) newKB(t *testing.T, id string) *domain.KnowledgeBase {
	t.Helper()
	kb := &domain.KnowledgeBase{
		ID:                id,
		Name:              id,
		CreatedBy:         testUser,
		EmbeddingProvider: domain.ProviderOllama,
		EmbeddingModel:    "embed-model",
		ChunkSize:         10,
		ChunkOverlap:      2,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, env.kbs.SaveKnowledgeBase(context.Background(), kb))
	return kb
}

// seedChunks stores n pending chunks for a document in kb.
func (env *testEnv) seedChunks(t *testing.T, kb *domain.KnowledgeBase, docID string, n int) []*domain.Chunk {
	t.Helper()
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:              docID + "-c" + string(rune('a'+i)),
			DocumentID:      docID,
			KnowledgeBaseID: kb.ID,
			Content:         "chunk " + string(rune('a'+i)),
			Index:           i,
			Status:          domain.EmbeddingPending,
		}
	}
	require.NoError(t, env.docs.SaveChunks(context.Background(), chunks))
	ptrs := make([]*domain.Chunk, n)
	for i := range chunks {
		ptrs[i] = &chunks[i]
	}
	return ptrs
}

var _ driven.VectorIndex = (*flakyIndex)(nil)
