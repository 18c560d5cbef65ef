package domain

// VectorPayload is the metadata stored next to each vector.
type VectorPayload struct {
	Content         string         `json:"content"`
	DocumentID      string         `json:"documentId"`
	KnowledgeBaseID string         `json:"knowledgeBaseId"`
	TenantID        string         `json:"workspace_id"`
	ChunkIndex      int            `json:"chunkIndex"`
	EmbeddingModel  string         `json:"embeddingModel"`
	Dimensions      int            `json:"dimensions"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// VectorRecord is an embedded chunk as stored in the vector index.
// Its ID equals the chunk ID.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload VectorPayload
}

// VectorHit is a single similarity search result.
type VectorHit struct {
	ID string

	// Score is cosine similarity in [-1,1].
	Score   float64
	Payload VectorPayload
}

// Payload field names usable in a VectorFilter.
const (
	FieldDocumentID      = "documentId"
	FieldKnowledgeBaseID = "knowledgeBaseId"
	FieldTenantID        = "workspace_id"
	FieldEmbeddingModel  = "embeddingModel"
)

// VectorFilter is a conjunction of exact-match conditions on payload fields.
type VectorFilter map[string]string

// Matches reports whether payload satisfies every condition.
func (f VectorFilter) Matches(p VectorPayload) bool {
	for key, want := range f {
		if p.Field(key) != want {
			return false
		}
	}
	return true
}

// Field returns a filterable payload field by name.
func (p VectorPayload) Field(name string) string {
	switch name {
	case FieldDocumentID:
		return p.DocumentID
	case FieldKnowledgeBaseID:
		return p.KnowledgeBaseID
	case FieldTenantID:
		return p.TenantID
	case FieldEmbeddingModel:
		return p.EmbeddingModel
	default:
		if v, ok := p.Metadata[name].(string); ok {
			return v
		}
		return ""
	}
}
