package driven

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// GraphHit is a benefit record reached by traversal, annotated with how it
// was reached.
type GraphHit struct {
	Record domain.BenefitRecord

	// Hops is the traversal distance from a seed record. Zero for seeds.
	Hops int

	// Strength accumulates edge strengths along the path; seeds get 1.
	Strength float64
}

// GraphStore persists benefit records and typed relationships, and answers
// bounded traversal queries. Records are immutable after creation;
// relationship analysis only adds edges.
type GraphStore interface {
	// UpsertBenefits stores benefit records.
	UpsertBenefits(ctx context.Context, records []domain.BenefitRecord) error

	// AddEdges stores typed edges between benefit records.
	AddEdges(ctx context.Context, edges []domain.BenefitEdge) error

	// Traverse expands from records of the given benefit types, scoped to
	// a plan, following edges up to maxHops. Results are ordered by
	// descending strength.
	Traverse(ctx context.Context, tenantID, healthPlanID string, types []domain.BenefitType, maxHops int) ([]GraphHit, error)

	// AnalyzeCoverage creates similar_coverage edges between a plan's
	// benefits whose coverage terms match. Returns edges created.
	AnalyzeCoverage(ctx context.Context, tenantID, healthPlanID string) (int, error)

	// DeleteByDocument removes records extracted from a document.
	DeleteByDocument(ctx context.Context, tenantID, documentID string) error
}
