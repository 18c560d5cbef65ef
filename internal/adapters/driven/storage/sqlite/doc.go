// Package sqlite provides a unified SQLite-based implementation of the
// ragline store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. A single database connection backs every store:
//
//   - KnowledgeBaseStore and BotStore
//   - DocumentStore and ChunkStore
//   - JobStore: terminal job history
//   - ProviderConfigStore: provider credentials by scope
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ragline/data/metadata.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite's WAL mode for
// concurrent readers.
package sqlite
