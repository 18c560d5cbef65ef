package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// IngestRequest describes a document to ingest. Exactly one of Content,
// Path, Data or URL must be set.
type IngestRequest struct {
	KnowledgeBaseID string `validate:"required"`
	Name            string

	// Content is plain text supplied directly.
	Content string

	// Data is raw file bytes, extracted according to MIMEType or Name.
	Data []byte

	// Path is a local file to read.
	Path string

	// URL is fetched and extracted.
	URL string `validate:"omitempty,url"`

	// SourceURL records where Data was downloaded from. It becomes the
	// document's URI and is never fetched.
	SourceURL string `validate:"omitempty,url"`

	MIMEType string
	Metadata map[string]any
}

// CrawlRequest ingests a website: the start page and the same-host pages it
// links to, one document and job per page.
type CrawlRequest struct {
	KnowledgeBaseID string `validate:"required"`
	URL             string `validate:"required,url"`
	MaxPages        int    `validate:"gte=0,lte=500"`
	MaxDepth        int    `validate:"gte=0,lte=10"`
	Include         []string
	Exclude         []string
	Metadata        map[string]any
}

// CrawlResult lists what a crawl queued.
type CrawlResult struct {
	Documents []domain.Document
	Jobs      []domain.ProcessingJob

	// Skipped holds page URLs already present in the knowledge base.
	Skipped []string
}

// IngestionService turns documents into embedded, searchable chunks.
type IngestionService interface {
	// Ingest stores the document, queues a processing job and returns
	// immediately. Processing continues in the background.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, *domain.ProcessingJob, error)

	// Crawl walks a website and queues one ingestion job per new page. It
	// returns once the crawl finishes; processing continues in the background.
	Crawl(ctx context.Context, req CrawlRequest) (*CrawlResult, error)

	// Wait blocks until the job reaches a terminal state or ctx ends.
	Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// ListDocuments returns the documents in a knowledge base.
	ListDocuments(ctx context.Context, knowledgeBaseID string) ([]domain.Document, error)

	// DeleteDocument removes a document, its chunks and its vectors.
	DeleteDocument(ctx context.Context, documentID string) error

	// Shutdown waits for in-flight processing to finish or ctx to end.
	Shutdown(ctx context.Context) error
}

// JobService exposes the processing job tracker.
type JobService interface {
	GetJob(jobID string) (*domain.ProcessingJob, error)
	ListJobs(knowledgeBaseID string) []domain.ProcessingJob
	ActiveJobs() []domain.ProcessingJob
}
