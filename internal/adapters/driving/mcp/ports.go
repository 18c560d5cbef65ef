package mcp

import (
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Query answers questions. Required.
	Query driving.QueryService

	// Ingestion accepts new documents. Without it ingest_text is not offered.
	Ingestion driving.IngestionService

	// Jobs reports processing status. Without it job_status is not offered.
	Jobs driving.JobService

	// KnowledgeBases backs the knowledge base resources.
	KnowledgeBases driving.KnowledgeBaseService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
