package extract

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// Result is what an extractor produces from one document: the retrieval
// chunks, the structured benefit records, and document-level metadata.
type Result struct {
	// PageCount is the number of source pages or sheets.
	PageCount int

	// Sections lists the section headers found, in document order.
	Sections []string

	// Chunks are ordered with contiguous indexes starting at 0.
	Chunks []domain.Chunk

	// Benefits are the structured coverage facts recovered from tables.
	Benefits []domain.BenefitRecord

	// PlanFields holds plan-level figures (deductibles, out-of-pocket
	// maxima) keyed by a normalised field name.
	PlanFields map[string]string
}

// Extractor turns an uploaded document into a Result. Implementations are
// selected by document type.
type Extractor interface {
	Extract(ctx context.Context, doc *domain.Document) (*Result, error)
}
