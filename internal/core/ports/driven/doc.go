// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: document, chunk and benefit persistence, plus the
//     tenant-scoped full-text chunk search.
//   - GraphStore: benefit record and edge persistence with bounded traversal.
//
// # Optional Interfaces
//
// These can be nil - retrieval degrades gracefully:
//
//   - VectorIndex: vector storage/search (Qdrant). Only enabled when
//     EmbeddingService is configured.
//   - EmbeddingService: generates vector embeddings. Without it, similarity
//     search is disabled and chunks are stored without vectors.
//   - LLMService: reasoning capability. Without it, query analysis and
//     response synthesis fall back to their deterministic paths.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter or extractor package
package driven
