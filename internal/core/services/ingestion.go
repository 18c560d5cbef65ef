package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/chunker"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// chunkSaveBatch is how many chunks are written per store call.
const chunkSaveBatch = 100

// IngestionService stores documents and drives them through chunking and
// embedding on supervised background jobs.
type IngestionService struct {
	kbs        driven.KnowledgeBaseStore
	docs       driven.DocumentStore
	chunks     driven.ChunkStore
	index      driven.VectorIndex
	pipeline   *EmbeddingPipeline
	tracker    *JobTracker
	extractors driven.ExtractorRegistry
	fetcher    driven.Fetcher
	crawler    driven.Crawler
	validate   *validator.Validate
}

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// NewIngestionService creates an ingestion service. extractors, fetcher and
// crawler may be nil; without extractors only plain text is accepted.
func NewIngestionService(
	kbs driven.KnowledgeBaseStore,
	docs driven.DocumentStore,
	chunks driven.ChunkStore,
	index driven.VectorIndex,
	pipeline *EmbeddingPipeline,
	tracker *JobTracker,
	extractors driven.ExtractorRegistry,
	fetcher driven.Fetcher,
	crawler driven.Crawler,
) *IngestionService {
	return &IngestionService{
		kbs:        kbs,
		docs:       docs,
		chunks:     chunks,
		index:      index,
		pipeline:   pipeline,
		tracker:    tracker,
		extractors: extractors,
		fetcher:    fetcher,
		crawler:    crawler,
		validate:   validator.New(),
	}
}

// Ingest validates the request, stores a pending document and queues its job.
func (s *IngestionService) Ingest(
	ctx context.Context, req driving.IngestRequest,
) (*domain.Document, *domain.ProcessingJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if n := countSources(req); n != 1 {
		return nil, nil, fmt.Errorf("%w: exactly one of content, data, path or url is required (got %d)",
			domain.ErrValidation, n)
	}

	kb, err := s.kbs.GetKnowledgeBase(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading knowledge base: %w", err)
	}

	if req.Path != "" {
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", req.Path, err)
		}
		req.Data = data
	}

	now := time.Now()
	doc := &domain.Document{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		Name:            documentName(req),
		URI:             firstNonEmpty(req.URL, req.SourceURL, req.Path),
		MIMEType:        req.MIMEType,
		Status:          domain.DocumentPending,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return nil, nil, fmt.Errorf("saving document: %w", err)
	}

	snapshot := *doc
	job, err := s.tracker.Submit(doc.ID, doc.Name, kb.ID, func(ctx context.Context, report ProgressFunc) error {
		return s.process(ctx, kb, doc, req, report)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("queued %s as job %s", doc.Name, job.ID)
	return &snapshot, job, nil
}

// Crawl walks req.URL and ingests every fetched page whose URL is not
// already a document URI in the knowledge base.
func (s *IngestionService) Crawl(ctx context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if s.crawler == nil {
		return nil, fmt.Errorf("%w: crawling is not configured", domain.ErrConfiguration)
	}
	if _, err := s.kbs.GetKnowledgeBase(ctx, req.KnowledgeBaseID); err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}

	existing, err := s.docs.ListDocuments(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, d := range existing {
		if d.URI != "" {
			known[d.URI] = true
		}
	}

	result := &driving.CrawlResult{}
	opts := driven.CrawlOptions{
		MaxPages: req.MaxPages,
		MaxDepth: req.MaxDepth,
		Include:  req.Include,
		Exclude:  req.Exclude,
	}
	err = s.crawler.Crawl(ctx, req.URL, opts, func(page driven.CrawledPage) error {
		if known[page.URL] {
			result.Skipped = append(result.Skipped, page.URL)
			return nil
		}
		if len(page.Content) == 0 {
			logger.Debug("crawl: %s is empty", page.URL)
			return nil
		}
		known[page.URL] = true

		metadata := make(map[string]any, len(req.Metadata)+2)
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		metadata["sourceUrl"] = page.URL
		metadata["crawlDepth"] = page.Depth

		doc, job, err := s.Ingest(ctx, driving.IngestRequest{
			KnowledgeBaseID: req.KnowledgeBaseID,
			Name:            page.URL,
			Data:            page.Content,
			SourceURL:       page.URL,
			MIMEType:        page.MIMEType,
			Metadata:        metadata,
		})
		if err != nil {
			return fmt.Errorf("queueing %s: %w", page.URL, err)
		}
		result.Documents = append(result.Documents, *doc)
		result.Jobs = append(result.Jobs, *job)
		return nil
	})
	if err != nil {
		return result, err
	}

	logger.Info("crawl of %s queued %d pages, skipped %d already ingested",
		req.URL, len(result.Jobs), len(result.Skipped))
	return result, nil
}

// process is the body of an ingestion job. It owns doc for its duration.
func (s *IngestionService) process(
	ctx context.Context,
	kb *domain.KnowledgeBase,
	doc *domain.Document,
	req driving.IngestRequest,
	report ProgressFunc,
) error {
	logger.Section("Ingest " + doc.Name)

	// 1. Mark processing
	doc.Status = domain.DocumentProcessing
	s.saveDocument(ctx, doc)

	// 2. Extract text
	extracted, err := s.extract(ctx, req)
	if err != nil {
		return s.failDocument(ctx, doc, err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return s.failDocument(ctx, doc, fmt.Errorf("%w: document content is empty", domain.ErrValidation))
	}
	doc.Content = extracted.Text
	if doc.MIMEType == "" {
		doc.MIMEType = extracted.MIMEType
	}
	if extracted.Title != "" {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		doc.Metadata["title"] = extracted.Title
	}

	// 3. Chunk with the knowledge base's window settings
	c := chunker.New(chunker.WithChunkSize(kb.ChunkSize), chunker.WithOverlap(kb.ChunkOverlap))
	chunks := c.Chunk(doc)
	logger.Debug("document %s: created %d chunks", doc.ID, len(chunks))
	report(0, len(chunks))

	// 4. Persist chunks as pending
	for start := 0; start < len(chunks); start += chunkSaveBatch {
		end := min(start+chunkSaveBatch, len(chunks))
		if err := s.chunks.SaveChunks(ctx, chunks[start:end]); err != nil {
			return s.failDocument(ctx, doc, fmt.Errorf("saving chunks: %w", err))
		}
	}

	// 5. Embed and index
	ptrs := make([]*domain.Chunk, len(chunks))
	for i := range chunks {
		ptrs[i] = &chunks[i]
	}
	result, err := s.pipeline.ProcessBatch(ctx, kb, ptrs, ProcessOptions{}, report)
	if err != nil {
		return s.failDocument(ctx, doc, err)
	}

	// 6. Complete. Skipped and failed chunks do not fail the document.
	doc.Status = domain.DocumentCompleted
	doc.ChunkCount = len(chunks)
	doc.Error = ""
	s.saveDocument(ctx, doc)

	logger.Info("document %s: %d completed, %d failed, %d skipped",
		doc.ID, result.Completed, result.Failed, result.Skipped)
	return nil
}

func (s *IngestionService) extract(ctx context.Context, req driving.IngestRequest) (*driven.ExtractResult, error) {
	switch {
	case req.Content != "":
		return &driven.ExtractResult{Text: req.Content, MIMEType: firstNonEmpty(req.MIMEType, "text/plain")}, nil

	case req.URL != "":
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: url ingestion is not configured", domain.ErrConfiguration)
		}
		data, mimeType, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", req.URL, err)
		}
		return s.extractBytes(ctx, data, firstNonEmpty(req.MIMEType, mimeType), req.URL)

	default:
		return s.extractBytes(ctx, req.Data, req.MIMEType, firstNonEmpty(req.Path, req.SourceURL, req.Name))
	}
}

func (s *IngestionService) extractBytes(
	ctx context.Context, data []byte, mimeType, uri string,
) (*driven.ExtractResult, error) {
	if s.extractors != nil {
		return s.extractors.Extract(ctx, data, mimeType, uri)
	}
	if mimeType == "" || strings.HasPrefix(mimeType, "text/") {
		return &driven.ExtractResult{Text: string(data), MIMEType: firstNonEmpty(mimeType, "text/plain")}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mimeType)
}

func (s *IngestionService) failDocument(ctx context.Context, doc *domain.Document, err error) error {
	doc.Status = domain.DocumentFailed
	doc.Error = err.Error()
	s.saveDocument(ctx, doc)
	return err
}

func (s *IngestionService) saveDocument(ctx context.Context, doc *domain.Document) {
	doc.UpdatedAt = time.Now()
	if err := s.docs.SaveDocument(context.WithoutCancel(ctx), doc); err != nil {
		logger.Warn("saving document %s: %v", doc.ID, err)
	}
}

// Wait blocks until the job is terminal.
func (s *IngestionService) Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return s.tracker.Wait(ctx, jobID)
}

// ListDocuments returns the documents in a knowledge base.
func (s *IngestionService) ListDocuments(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx, knowledgeBaseID)
}

// DeleteDocument removes the document's vectors, chunks and record.
func (s *IngestionService) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	for _, j := range s.tracker.ActiveJobs() {
		if j.DocumentID == documentID {
			return fmt.Errorf("%w: document %s is being processed by %s", domain.ErrInvalidInput, documentID, j.ID)
		}
	}

	kb, err := s.kbs.GetKnowledgeBase(ctx, doc.KnowledgeBaseID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	tenant := domain.DefaultTenant
	if kb != nil {
		tenant = kb.Owner().TenantID()
	}

	filter := domain.VectorFilter{domain.FieldDocumentID: documentID}
	if err := s.index.DeleteByFilter(ctx, tenant, filter); err != nil {
		return fmt.Errorf("deleting vectors for %s: %w", documentID, err)
	}
	if err := s.chunks.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", documentID, err)
	}
	return s.docs.DeleteDocument(ctx, documentID)
}

// Shutdown waits for running jobs to finish.
func (s *IngestionService) Shutdown(ctx context.Context) error {
	return s.tracker.Shutdown(ctx)
}

func countSources(req driving.IngestRequest) int {
	n := 0
	for _, set := range []bool{req.Content != "", len(req.Data) > 0, req.Path != "", req.URL != ""} {
		if set {
			n++
		}
	}
	return n
}

func documentName(req driving.IngestRequest) string {
	switch {
	case req.Name != "":
		return req.Name
	case req.Path != "":
		return filepath.Base(req.Path)
	case req.URL != "":
		return req.URL
	default:
		return "untitled"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
