package domain

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single turn sent to a generation provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a generation call.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// AnswerOptions controls retrieval for a question.
type AnswerOptions struct {
	// Limit is the topK passed to the vector index. Defaults to 5.
	Limit int

	// SimilarityThreshold drops hits scoring below it. Defaults to 0.5.
	SimilarityThreshold float64

	// Model overrides the generation model.
	Model string
}

// ScopeHints tell the query engine where to look and whose credentials to use.
type ScopeHints struct {
	KnowledgeBaseIDs []string
	BotID            string
	Owner            Owner
	History          []ChatMessage
}

// Source is a chunk cited by an answer.
type Source struct {
	ChunkID    string         `json:"chunkId"`
	DocumentID string         `json:"documentId"`
	ChunkIndex int            `json:"chunkIndex"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Answer is the result of a RAG query.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model,omitempty"`
}

// InsufficientInformationAnswer is returned when no context survives filtering.
const InsufficientInformationAnswer = "I don't have enough information to answer that question."

// MaxSources caps the sources returned with an answer.
const MaxSources = 5
