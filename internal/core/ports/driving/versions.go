package driving

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// VersionControl manages document version lineages.
type VersionControl interface {
	// UploadVersion creates a new version of an existing document from the
	// file at path. When the file's content hash equals the current
	// version's hash, no version is created and the existing document is
	// returned unchanged.
	UploadVersion(ctx context.Context, tenantID, originalID, path, changeNotes string) (*domain.VersionResult, error)

	// History returns the full version lineage, newest first.
	History(ctx context.Context, tenantID, documentID string) ([]domain.Document, error)

	// Compare diffs two versions of a document.
	Compare(ctx context.Context, tenantID, idA, idB string) (*domain.ChangeSummary, error)

	// Rollback creates a new version whose content matches the target
	// historical version. History is never rewritten in place.
	Rollback(ctx context.Context, tenantID, targetVersionID, reason string) (*domain.Document, error)

	// DeleteVersion soft-deletes a version. Deleting an original through
	// this path is rejected with domain.ErrNotAVersion.
	DeleteVersion(ctx context.Context, tenantID, versionID, reason string) error
}
