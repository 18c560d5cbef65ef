package domain

import "time"

// VectorBackend selects the VectorIndexBackend implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendQdrant uses a Qdrant server over REST.
	VectorBackendQdrant VectorBackend = "qdrant"

	// VectorBackendBadger stores vectors in a local badger database.
	VectorBackendBadger VectorBackend = "badger"

	// VectorBackendMemory keeps vectors in process memory. Lost on exit.
	VectorBackendMemory VectorBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendQdrant, VectorBackendBadger, VectorBackendMemory:
		return true
	default:
		return false
	}
}

// ChunkerSettings holds chunk window configuration.
type ChunkerSettings struct {
	Size    int
	Overlap int
}

// PipelineSettings tunes the embedding pipeline.
type PipelineSettings struct {
	// BatchSize is the number of chunks embedded concurrently.
	BatchSize int

	// BatchDelay is the pause inserted between batches.
	BatchDelay time.Duration

	// RateLimitRPS caps embedding calls per second. Zero disables the limiter.
	RateLimitRPS float64
}

// VectorSettings configures the vector index.
type VectorSettings struct {
	Backend    VectorBackend
	QdrantURL  string
	APIKey     string
	Collection string
	Dimensions int
}

// JobSettings configures the job tracker.
type JobSettings struct {
	MaxConcurrent int
	Retain        int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunker  ChunkerSettings
	Pipeline PipelineSettings
	Vector   VectorSettings
	Jobs     JobSettings

	// EmbeddingProvider and EmbeddingModel are the defaults for new knowledge bases.
	EmbeddingProvider ProviderKind
	EmbeddingModel    string

	// GenerationModel is used when neither bot nor knowledge base names one.
	GenerationModel string

	// MaintenanceSchedule is a cron spec for periodic cleanup.
	MaintenanceSchedule string

	// QueryCacheTTL is how long query embeddings are cached.
	QueryCacheTTL time.Duration
}

// Defaults shared by services and adapters.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultBatchSize       = 10
	DefaultBatchDelay      = 100 * time.Millisecond
	DefaultMaxConcurrent   = 3
	DefaultJobRetention    = 100
	DefaultCollection      = "knowledge-base"
	DefaultDimensions      = 768
	DefaultQueryLimit      = 5
	DefaultThreshold       = 0.5
	DefaultQueryCacheTTL   = time.Hour
	DefaultGenerationModel = "gemini-2.0-flash"
	DefaultSchedule        = "@every 10m"
)

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunker: ChunkerSettings{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		Pipeline: PipelineSettings{
			BatchSize:  DefaultBatchSize,
			BatchDelay: DefaultBatchDelay,
		},
		Vector: VectorSettings{
			Backend:    VectorBackendBadger,
			QdrantURL:  "http://localhost:6333",
			Collection: DefaultCollection,
			Dimensions: DefaultDimensions,
		},
		Jobs:                JobSettings{MaxConcurrent: DefaultMaxConcurrent, Retain: DefaultJobRetention},
		EmbeddingProvider:   ProviderGoogle,
		EmbeddingModel:      DefaultEmbeddingModel(ProviderGoogle),
		GenerationModel:     DefaultGenerationModel,
		MaintenanceSchedule: DefaultSchedule,
		QueryCacheTTL:       DefaultQueryCacheTTL,
	}
}

// DefaultEmbeddingModel returns the default embedding model for a kind.
func DefaultEmbeddingModel(k ProviderKind) string {
	switch k {
	case ProviderOllama:
		return "mxbai-embed-large:latest"
	case ProviderOpenAI, ProviderCustom:
		return "text-embedding-3-small"
	case ProviderGoogle:
		return "text-embedding-004"
	default:
		return ""
	}
}

// DefaultGenerationModelFor returns the default chat model for a kind.
func DefaultGenerationModelFor(k ProviderKind) string {
	switch k {
	case ProviderOllama:
		return "llama3.2"
	case ProviderOpenAI, ProviderCustom:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderGoogle:
		return DefaultGenerationModel
	default:
		return ""
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":         768,
		"mxbai-embed-large":        1024,
		"mxbai-embed-large:latest": 1024,
		"all-minilm":               384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Google models
		"text-embedding-004": 768,
		"gemini-embedding-001": 3072,
	}
}

// DimensionsFor returns the vector size model produces, or DefaultDimensions
// when the model is not known.
func DimensionsFor(model string) int {
	if d, ok := EmbeddingDimensions()[model]; ok {
		return d
	}
	return DefaultDimensions
}
