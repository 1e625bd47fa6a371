// Package domain holds the core entities of the plan document pipeline.
package domain

import "time"

// DocumentType classifies an uploaded plan document.
type DocumentType string

const (
	// DocTypeNarrative is a prose-and-table plan description (SPD PDF).
	DocTypeNarrative DocumentType = "narrative"

	// DocTypeTabular is a spreadsheet of benefit amounts and tiers (BPS).
	DocTypeTabular DocumentType = "tabular"

	// DocTypeOther is any supported file that is neither of the above.
	DocTypeOther DocumentType = "other"
)

// ProcessingStatus tracks a document through its pipeline lifecycle.
type ProcessingStatus string

const (
	StatusUploaded   ProcessingStatus = "uploaded"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusArchived   ProcessingStatus = "archived"
)

// CanTransition reports whether moving to next is a legal status change.
// The lifecycle is uploaded → processing → {completed, failed}. Failed
// documents may re-enter processing on retry. Completed documents may be
// archived when superseded by a newer version.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	case StatusCompleted:
		return next == StatusArchived
	default:
		return false
	}
}

// Terminal reports whether the status is an end state for a pipeline run.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusArchived
}

// Document represents an uploaded plan document and its version metadata.
type Document struct {
	// ID is the unique identifier for this document row.
	ID string

	// TenantID is the owning tenant. All reads are tenant scoped.
	TenantID string

	// HealthPlanID optionally links the document to a health plan.
	HealthPlanID string

	// Filename is the original upload filename.
	Filename string

	// FilePath is the opaque location of the uploaded bytes.
	FilePath string

	// FileSize is the upload size in bytes.
	FileSize int64

	// ContentHash is the SHA-256 of the file content. Unique per tenant
	// among current versions; identical re-uploads never create a version.
	ContentHash string

	// Type classifies the document for extractor selection.
	Type DocumentType

	// Status is the processing lifecycle state.
	Status ProcessingStatus

	// ErrorMessage holds the failure reason when Status is failed.
	ErrorMessage string

	// PageCount is set during narrative extraction.
	PageCount int

	// Sections lists section headers found during extraction.
	Sections []string

	// Metadata contains arbitrary extracted key-value pairs.
	Metadata map[string]any

	// Version is the version number within the document lineage, starting
	// at 1 for the original.
	Version int

	// OriginalID is the lineage root document ID. Empty for originals.
	OriginalID string

	// PreviousVersion is the version number this one superseded.
	PreviousVersion int

	// ChangeNotes describes what changed in this version.
	ChangeNotes string

	// IsVersion is true for documents created through version control.
	IsVersion bool

	// IsCurrent is true for the active version of a lineage.
	IsCurrent bool

	// Deleted marks a soft-deleted version. Rows are never removed.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineageID returns the ID that identifies this document's version chain.
func (d *Document) LineageID() string {
	if d.OriginalID != "" {
		return d.OriginalID
	}
	return d.ID
}

// ChunkKind describes what a chunk was extracted from.
type ChunkKind string

const (
	ChunkParagraph      ChunkKind = "paragraph"
	ChunkTable          ChunkKind = "table"
	ChunkBenefitSummary ChunkKind = "benefit_summary"
	ChunkPlanOverview   ChunkKind = "plan_overview"
	ChunkDocument       ChunkKind = "document"
)

// Chunk is the atomic retrieval unit extracted from a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// TenantID is the owning tenant, denormalised for scoped search.
	TenantID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document. Indexes are
	// unique and contiguous per document.
	Index int

	// Content is the chunk text.
	Content string

	// ContentHash is the SHA-256 of Content.
	ContentHash string

	// Page is the 1-based source page, when known.
	Page int

	// Section is the section header the chunk falls under, when known.
	Section string

	// Kind describes the chunk's structural origin.
	Kind ChunkKind

	// Keywords, Entities and Topics are semantic tags attached during
	// extraction and enrichment.
	Keywords []string
	Entities []string
	Topics   []string

	// RelevanceScore estimates how plan-relevant the content is, in [0,1].
	RelevanceScore float64

	// ConfidenceScore estimates extraction quality, in [0,1].
	ConfidenceScore float64

	// Embedding is the vector representation for similarity search. Nil
	// when embedding failed; such chunks are still keyword searchable.
	Embedding []float32

	// EmbeddingModel identifies the model that produced Embedding.
	EmbeddingModel string
}
