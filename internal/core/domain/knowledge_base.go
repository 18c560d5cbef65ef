package domain

import "time"

// KnowledgeBase is a named collection of documents sharing one embedding space.
type KnowledgeBase struct {
	ID          string
	Name        string
	Description string

	// WorkspaceID is empty for personal knowledge bases.
	WorkspaceID string

	// CreatedBy is the owning user. Its credentials are the user-scope fallback.
	CreatedBy string

	// AIProviderID is the generation ProviderConfig bound to this knowledge base.
	AIProviderID string

	// RAGModel overrides the generation model for answers.
	RAGModel string

	// EmbeddingProviderID optionally pins a specific ProviderConfig for embeddings.
	EmbeddingProviderID string

	// EmbeddingProvider and EmbeddingModel define the vector space. Changing
	// either after ingestion requires a rebuild.
	EmbeddingProvider ProviderKind
	EmbeddingModel    string

	ChunkSize    int
	ChunkOverlap int

	TotalDocuments int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner returns the scope documents in this knowledge base are ingested under.
func (kb *KnowledgeBase) Owner() Owner {
	return Owner{UserID: kb.CreatedBy, WorkspaceID: kb.WorkspaceID}
}

// Bot is a configured assistant that answers questions.
type Bot struct {
	ID           string
	Name         string
	WorkspaceID  string
	CreatedBy    string
	AIProviderID string
	AIModelName  string
	SystemPrompt string

	// KnowledgeBaseIDs are searched for context when answering.
	KnowledgeBaseIDs []string

	CreatedAt time.Time
}

// Owner returns the scope the bot resolves credentials in.
func (b *Bot) Owner() Owner {
	return Owner{UserID: b.CreatedBy, WorkspaceID: b.WorkspaceID}
}
