package driven

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// ChunkQuery scopes a full-text chunk search.
type ChunkQuery struct {
	// TenantID is required. All searches are tenant scoped.
	TenantID string

	// HealthPlanID optionally narrows to one plan.
	HealthPlanID string

	// DocumentType optionally narrows to one document type.
	DocumentType domain.DocumentType

	// Terms are the keywords to match against chunk content and tags.
	Terms []string

	// Limit caps the number of results.
	Limit int
}

// DocumentStore persists documents, chunks and benefit records.
// Backed by SQLite.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID, tenant scoped.
	GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error)

	// FindByContentHash returns the current, non-deleted document with the
	// given content hash for a tenant, or domain.ErrNotFound.
	FindByContentHash(ctx context.Context, tenantID, hash string) (*domain.Document, error)

	// ListLineage returns every document in a version lineage, including
	// the original, newest version first. Soft-deleted versions included.
	ListLineage(ctx context.Context, tenantID, originalID string) ([]domain.Document, error)

	// ListByStatus returns a tenant's documents in the given status.
	ListByStatus(ctx context.Context, tenantID string, status domain.ProcessingStatus) ([]domain.Document, error)

	// CountByStatus returns how many of a tenant's documents are in the
	// given status.
	CountByStatus(ctx context.Context, tenantID string, status domain.ProcessingStatus) (int, error)

	// UpdateStatus transitions a document's processing status. It returns
	// domain.ErrInvalidTransition when the change is not legal and
	// domain.ErrAlreadyProcessing when the document is already processing;
	// the check-and-set is atomic per document.
	UpdateStatus(ctx context.Context, tenantID, id string, status domain.ProcessingStatus, errMsg string) error

	// SaveChunks replaces the chunk set for a document in one transaction.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document, ordered by index.
	GetChunks(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error)

	// CountChunks returns the number of chunks stored for a document.
	CountChunks(ctx context.Context, tenantID, documentID string) (int, error)

	// SearchChunks performs keyword search over chunks of fully processed
	// documents only, scored by term match count.
	SearchChunks(ctx context.Context, q ChunkQuery) ([]domain.Chunk, error)
}
