package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question         string   `json:"question" jsonschema:"the question to answer"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids,omitempty" jsonschema:"knowledge bases to search"`
	BotID            string   `json:"bot_id,omitempty" jsonschema:"bot whose knowledge bases and model are used"`
	Limit            int      `json:"limit,omitempty" jsonschema:"chunks retrieved per knowledge base (default 5)"`
	Threshold        float64  `json:"threshold,omitempty" jsonschema:"minimum similarity score between 0 and 1 (default 0.5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Model   string         `json:"model,omitempty"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one retrieved chunk.
type SourceOutput struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query           string  `json:"query" jsonschema:"the text to find similar chunks for"`
	KnowledgeBaseID string  `json:"knowledge_base_id" jsonschema:"the knowledge base to search"`
	Limit           int     `json:"limit,omitempty" jsonschema:"maximum chunks to return (default 5)"`
	Threshold       float64 `json:"threshold,omitempty" jsonschema:"minimum similarity score between 0 and 1 (default 0.5)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Sources []SourceOutput `json:"sources"`
	Count   int            `json:"count"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	KnowledgeBaseID string `json:"knowledge_base_id" jsonschema:"the knowledge base to add the text to"`
	Name            string `json:"name" jsonschema:"a display name for the document"`
	Text            string `json:"text" jsonschema:"the document text"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

// JobStatusInput is the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the job id returned by ingest_text"`
}

// JobStatusOutput is the output schema for the job_status tool.
type JobStatusOutput struct {
	JobID           string `json:"job_id"`
	DocumentID      string `json:"document_id"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	ProcessedChunks int    `json:"processed_chunks"`
	TotalChunks     int    `json:"total_chunks"`
	Error           string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the content of ragline knowledge bases",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return the chunks of a knowledge base most similar to a query, without generating an answer",
	}, s.handleRetrieve)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Add a text document to a knowledge base. Processing continues in the background; poll job_status.",
		}, s.handleIngestText)
	}

	if s.ports.Jobs != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "job_status",
			Description: "Report the progress of a document processing job",
		}, s.handleJobStatus)
	}
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	hints := domain.ScopeHints{
		KnowledgeBaseIDs: input.KnowledgeBaseIDs,
		BotID:            input.BotID,
		Owner:            domain.Owner{UserID: Owner},
	}
	opts := domain.AnswerOptions{Limit: input.Limit, SimilarityThreshold: input.Threshold}

	answer, err := s.ports.Query.Answer(ctx, input.Question, hints, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  answer.Answer,
		Model:   answer.Model,
		Sources: sourceOutputs(answer.Sources),
	}, nil
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := domain.AnswerOptions{Limit: input.Limit, SimilarityThreshold: input.Threshold}
	sources, err := s.ports.Query.Retrieve(ctx, input.Query, input.KnowledgeBaseID, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	out := sourceOutputs(sources)
	return nil, RetrieveOutput{Sources: out, Count: len(out)}, nil
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	if input.Text == "" {
		return nil, IngestTextOutput{}, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}

	doc, job, err := s.ports.Ingestion.Ingest(ctx, driving.IngestRequest{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Name:            input.Name,
		Content:         input.Text,
		Metadata:        map[string]any{"source": "mcp"},
	})
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{
		DocumentID: doc.ID,
		JobID:      job.ID,
		Status:     string(job.Status),
	}, nil
}

func (s *Server) handleJobStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input JobStatusInput,
) (*mcp.CallToolResult, JobStatusOutput, error) {
	job, err := s.ports.Jobs.GetJob(input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}

	return nil, JobStatusOutput{
		JobID:           job.ID,
		DocumentID:      job.DocumentID,
		Status:          string(job.Status),
		Progress:        job.Progress,
		ProcessedChunks: job.ProcessedChunks,
		TotalChunks:     job.TotalChunks,
		Error:           job.Error,
	}, nil
}

func sourceOutputs(sources []domain.Source) []SourceOutput {
	out := make([]SourceOutput, len(sources))
	for i := range sources {
		out[i] = SourceOutput{
			DocumentID: sources[i].DocumentID,
			ChunkIndex: sources[i].ChunkIndex,
			Score:      sources[i].Score,
			Content:    sources[i].Content,
		}
	}
	return out
}
