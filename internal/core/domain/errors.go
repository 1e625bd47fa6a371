package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBatchTooLarge indicates a batch exceeds the configured maximum size.
	// Oversized batches are rejected outright, never partially run.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrInvalidTransition indicates a disallowed processing status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyProcessing indicates a document pipeline is already running
	// for the document. Duplicate triggers are a no-op.
	ErrAlreadyProcessing = errors.New("document already processing")

	// ErrNotAVersion indicates an operation that only applies to versioned
	// documents was attempted on an original. Originals cannot be soft
	// deleted through version control.
	ErrNotAVersion = errors.New("document is not a version")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrExtraction indicates document content could not be extracted.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrGraphUnavailable indicates the graph store is not configured.
	ErrGraphUnavailable = errors.New("graph store unavailable")

	// ErrLLMUnavailable indicates the reasoning service is not configured.
	// Query analysis and synthesis degrade to deterministic fallbacks.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
