package mcp

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// --- Mock implementations ---

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer   *domain.Answer
	sources  []domain.Source
	err      error
	question string
	hints    domain.ScopeHints
	opts     domain.AnswerOptions
}

func (m *mockQueryService) Answer(
	_ context.Context,
	question string,
	hints domain.ScopeHints,
	opts domain.AnswerOptions,
) (*domain.Answer, error) {
	m.question, m.hints, m.opts = question, hints, opts
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(
	_ context.Context,
	question string,
	_ string,
	opts domain.AnswerOptions,
) ([]domain.Source, error) {
	m.question, m.opts = question, opts
	return m.sources, m.err
}

func (m *mockQueryService) Chat(_ context.Context, _ string, _ domain.ScopeHints, _ string) (string, error) {
	return "", m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	documents []domain.Document
	request   driving.IngestRequest
	err       error
}

func (m *mockIngestionService) Ingest(
	_ context.Context,
	req driving.IngestRequest,
) (*domain.Document, *domain.ProcessingJob, error) {
	m.request = req
	if m.err != nil {
		return nil, nil, m.err
	}
	doc := &domain.Document{ID: "doc-1", KnowledgeBaseID: req.KnowledgeBaseID, Name: req.Name}
	job := &domain.ProcessingJob{ID: "job-1", DocumentID: doc.ID, Status: domain.JobQueued}
	return doc, job, nil
}

func (m *mockIngestionService) Crawl(_ context.Context, _ driving.CrawlRequest) (*driving.CrawlResult, error) {
	return nil, m.err
}

func (m *mockIngestionService) Wait(_ context.Context, _ string) (*domain.ProcessingJob, error) {
	return nil, m.err
}

func (m *mockIngestionService) ListDocuments(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockIngestionService) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestionService) Shutdown(_ context.Context) error {
	return nil
}

// mockJobService is a mock implementation of driving.JobService.
type mockJobService struct {
	jobs map[string]domain.ProcessingJob
}

func (m *mockJobService) GetJob(id string) (*domain.ProcessingJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (m *mockJobService) ListJobs(_ string) []domain.ProcessingJob {
	return nil
}

func (m *mockJobService) ActiveJobs() []domain.ProcessingJob {
	return nil
}

// mockKnowledgeBaseService is a mock implementation of driving.KnowledgeBaseService.
type mockKnowledgeBaseService struct {
	driving.KnowledgeBaseService
	kbs []domain.KnowledgeBase
	err error
}

func (m *mockKnowledgeBaseService) ListKnowledgeBases(_ context.Context) ([]domain.KnowledgeBase, error) {
	return m.kbs, m.err
}
