// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingProvider: Turns text into vectors (one implementation per ProviderKind)
//   - GenerationProvider: Chat completion (one implementation per ProviderKind)
//   - CredentialStore: Looks up provider credentials by scope
//   - DocumentStore / ChunkStore / KnowledgeBaseStore / BotStore: Persistence
//   - VectorIndex: Similarity search backend (Qdrant, badger, memory)
//   - ProgressSink: Receives job progress events
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingCache: Caches query embeddings. Without it every question is re-embedded.
//   - JobStore: Persists finished jobs. Without it job history is in-memory only.
//   - TextExtractor: Converts uploaded files to text. Without it only plain text is accepted.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
