package driving

import "context"

// VectorReport summarises a knowledge base's vector coverage.
type VectorReport struct {
	TotalChunks      int `json:"totalChunks"`
	MissingVectors   int `json:"missingVectors"`
	FailedEmbeddings int `json:"failedEmbeddings"`
}

// SyncResult summarises a rebuild or sync run.
type SyncResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// VectorSyncService repairs the vector index from stored chunks.
type VectorSyncService interface {
	// Rebuild re-embeds every chunk of the knowledge base.
	Rebuild(ctx context.Context, knowledgeBaseID string) (*SyncResult, error)

	// Verify counts chunks lacking a usable vector.
	Verify(ctx context.Context, knowledgeBaseID string) (*VectorReport, error)

	// SyncMissing embeds only chunks with no vector or a failed status.
	SyncMissing(ctx context.Context, knowledgeBaseID string) (*SyncResult, error)
}
