package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap their underlying errors with one of these so callers can
// branch with errors.Is without knowing which provider or backend failed.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates malformed chunk bounds, empty document content
	// or a request that failed struct validation. Fatal to that document only.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration indicates no provider or credential could be resolved.
	// Fatal to the operation and surfaced to the caller.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvider indicates an upstream embedding or generation call failed.
	ErrProvider = errors.New("provider error")

	// ErrCredentialMissing indicates a hosted provider was called without a
	// credential. It always travels wrapped together with ErrProvider.
	ErrCredentialMissing = errors.New("no credential configured")

	// ErrIndexUnavailable indicates the vector index backend is unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector does not match the collection size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingModelMismatch indicates a knowledge base already holds
	// vectors from a different embedding model.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// ErrJobTerminal indicates a transition was attempted on a finished job.
	ErrJobTerminal = errors.New("job already terminal")

	// ErrUnsupportedType indicates an unknown provider kind or document type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnavailable indicates a remote document could not be retrieved.
	ErrUnavailable = errors.New("remote source unavailable")
)

// IsCredentialMissing reports whether err is a provider failure caused by a
// missing credential, the only failure that triggers embedding fallback.
func IsCredentialMissing(err error) bool {
	return errors.Is(err, ErrCredentialMissing)
}
