package driven

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// VectorFilter scopes a similarity search or deletion.
type VectorFilter struct {
	// TenantID is required on every query.
	TenantID string

	// HealthPlanID optionally narrows to one plan.
	HealthPlanID string

	// DocumentType optionally narrows to one document type.
	DocumentType domain.DocumentType

	// DocumentID narrows deletion to one document's points.
	DocumentID string
}

// VectorPoint is a chunk embedding with its filterable payload.
type VectorPoint struct {
	ChunkID      string
	Vector       []float32
	Content      string
	TenantID     string
	HealthPlanID string
	DocumentID   string
	DocumentType domain.DocumentType
	ChunkIndex   int
	Page         int
	Section      string
	Kind         domain.ChunkKind
}

// VectorHit is a similarity search result.
type VectorHit struct {
	ChunkID    string
	Score      float64
	Content    string
	DocumentID string
	Page       int
	Section    string
	Kind       domain.ChunkKind
}

// VectorStats reports index size and configuration.
type VectorStats struct {
	PointCount uint64
	Dimension  int
}

// VectorIndex provides semantic similarity search. Backed by Qdrant.
type VectorIndex interface {
	// Upsert stores points, overwriting existing IDs.
	Upsert(ctx context.Context, points []VectorPoint) error

	// Query finds the topK nearest points above minScore matching filter.
	Query(ctx context.Context, vector []float32, filter VectorFilter, topK int, minScore float64) ([]VectorHit, error)

	// Delete removes all points matching filter.
	Delete(ctx context.Context, filter VectorFilter) error

	// Stats returns index statistics.
	Stats(ctx context.Context) (VectorStats, error)

	// Close releases resources.
	Close() error
}
