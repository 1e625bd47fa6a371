package driving

import (
	"context"
	"time"
)

// DocumentOutcome is the terminal result for one document in a batch.
type DocumentOutcome struct {
	DocumentID string
	Filename   string

	// Status is "completed" or "failed".
	Status string

	// Error holds the failure message when Status is "failed".
	Error string
}

// BatchResult aggregates the outcome of a batch run.
type BatchResult struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []DocumentOutcome
	Elapsed   time.Duration
	StartedAt time.Time
}

// BatchProcessor ingests many documents concurrently under a bound.
type BatchProcessor interface {
	// ProcessBatch processes the given files for a tenant. Batches larger
	// than the configured maximum are rejected with domain.ErrBatchTooLarge.
	// One document's failure never aborts the others.
	ProcessBatch(ctx context.Context, tenantID, healthPlanID string, paths []string) (*BatchResult, error)

	// ProcessArchive unpacks a zip archive, filters to supported
	// extensions, and processes the contents as a batch.
	ProcessArchive(ctx context.Context, tenantID, healthPlanID, archivePath string) (*BatchResult, error)

	// RetryFailed re-attempts only the tenant's documents left in failed
	// state, resetting each to processing first.
	RetryFailed(ctx context.Context, tenantID string) (*BatchResult, error)
}
