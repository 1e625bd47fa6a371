package domain

// ChangeMagnitude is a coarse estimate of how much content changed between
// two versions of a narrative document.
type ChangeMagnitude string

const (
	ChangeMinimal     ChangeMagnitude = "minimal"
	ChangeModerate    ChangeMagnitude = "moderate"
	ChangeSignificant ChangeMagnitude = "significant"
)

// MetadataDiff records keys added, removed and modified between versions.
// Version bookkeeping keys are excluded from the comparison.
type MetadataDiff struct {
	Added    map[string]any
	Removed  map[string]any
	Modified map[string][2]any
}

// Empty reports whether the diff contains no changes.
func (d MetadataDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// ChangeSummary describes what changed when a new version was created.
type ChangeSummary struct {
	FileSizeDelta int64
	HashChanged   bool
	Metadata      MetadataDiff

	// ChunkCountDelta and Magnitude are only set for narrative documents
	// where both versions have extracted chunks.
	ChunkCountDelta int
	Magnitude       ChangeMagnitude
}

// VersionResult reports the outcome of a version-control upload.
type VersionResult struct {
	// Created is false when the upload was byte-identical to the current
	// version and no new version was made.
	Created bool

	// Reason explains a Created=false outcome.
	Reason string

	Version         int
	PreviousVersion int
	Document        *Document
	Summary         *ChangeSummary
}
