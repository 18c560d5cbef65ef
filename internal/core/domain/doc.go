// Package domain defines the core business entities for ragline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - KnowledgeBase: A named collection of documents with its embedding binding
//   - Document: An ingested document and its processing status
//   - Chunk: A windowed slice of a document, the unit of embedding and retrieval
//   - VectorRecord: The indexed form of an embedded chunk
//   - ProcessingJob: Progress of one document's ingestion
//   - ProviderConfig / ProviderBinding: Stored and resolved provider credentials
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
