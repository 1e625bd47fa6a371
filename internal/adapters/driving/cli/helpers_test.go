package cli

import (
	"context"
	"time"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
)

// setupTestServices wires fake services into the command tree and returns a
// cleanup function that restores the previous wiring and flag state.
func setupTestServices() func() {
	prevBatch := batchService
	prevQuery := queryService
	prevVersions := versionService
	prevDocs := documentStore
	prevVectors := vectorIndex
	prevConfig := configStore
	prevTenant := tenantID
	prevPlan := planID

	batchService = &fakeBatchProcessor{}
	queryService = &fakeQueryService{}
	versionService = &fakeVersionControl{}
	documentStore = &fakeDocumentStore{}
	vectorIndex = &fakeVectorIndex{}
	configStore = nil
	tenantID = "tenant-a"
	planID = ""

	return func() {
		batchService = prevBatch
		queryService = prevQuery
		versionService = prevVersions
		documentStore = prevDocs
		vectorIndex = prevVectors
		configStore = prevConfig
		tenantID = prevTenant
		planID = prevPlan
		ingestArchive = false
		statusFilter = ""
		queryJSON = false
		queryContext = ""
		suggestLimit = 5
		versionNotes = ""
		versionReason = ""
	}
}

// clearTestServices nils every service so the not-configured guards fire.
func clearTestServices() func() {
	cleanup := setupTestServices()
	batchService = nil
	queryService = nil
	versionService = nil
	documentStore = nil
	vectorIndex = nil
	configStore = nil
	return cleanup
}

// ==================== Fakes ====================

type fakeBatchProcessor struct {
	lastPaths []string
}

func (f *fakeBatchProcessor) ProcessBatch(_ context.Context, _, _ string, paths []string) (*driving.BatchResult, error) {
	f.lastPaths = paths
	outcomes := make([]driving.DocumentOutcome, 0, len(paths))
	for i, p := range paths {
		outcomes = append(outcomes, driving.DocumentOutcome{
			DocumentID: "doc-" + string(rune('1'+i)),
			Filename:   p,
			Status:     string(domain.StatusCompleted),
		})
	}
	return &driving.BatchResult{
		BatchID:   "batch-1",
		Total:     len(paths),
		Succeeded: len(paths),
		Outcomes:  outcomes,
		Elapsed:   120 * time.Millisecond,
		StartedAt: time.Now(),
	}, nil
}

func (f *fakeBatchProcessor) ProcessArchive(ctx context.Context, tenantID, healthPlanID, archivePath string) (*driving.BatchResult, error) {
	return f.ProcessBatch(ctx, tenantID, healthPlanID, []string{archivePath})
}

func (f *fakeBatchProcessor) RetryFailed(_ context.Context, _ string) (*driving.BatchResult, error) {
	return &driving.BatchResult{
		BatchID:   "batch-retry",
		Total:     1,
		Succeeded: 1,
		Outcomes: []driving.DocumentOutcome{
			{DocumentID: "doc-f", Filename: "failed.pdf", Status: string(domain.StatusCompleted)},
		},
	}, nil
}

type fakeQueryService struct{}

func (f *fakeQueryService) Ask(_ context.Context, _, _, question string, _ *domain.ConversationContext) (*domain.Answer, error) {
	return &domain.Answer{
		Text:            "Your specialist copay is $40 in network.",
		Confidence:      0.82,
		ConfidenceLabel: "High",
		Sources: []domain.Citation{
			{Source: domain.SourceVector, DocumentID: "doc-1", Page: 12, Section: "Office Visits", Score: 0.91},
		},
		RelatedTopics: []string{"copay", "specialist"},
		FollowUps:     []string{"What is my primary care copay?"},
		Intent:        domain.IntentCost,
		Complexity:    domain.ComplexitySimple,
	}, nil
}

func (f *fakeQueryService) Suggestions(_ context.Context, _ string, limit int) ([]string, error) {
	all := []string{
		"What is my deductible?",
		"What is my copay for a specialist visit?",
		"Does an MRI need prior authorization?",
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type fakeVersionControl struct{}

func (f *fakeVersionControl) UploadVersion(_ context.Context, _, originalID, _, notes string) (*domain.VersionResult, error) {
	return &domain.VersionResult{
		Created:         true,
		Version:         2,
		PreviousVersion: 1,
		Document:        &domain.Document{ID: "doc-v2", OriginalID: originalID, Version: 2, ChangeNotes: notes},
		Summary: &domain.ChangeSummary{
			FileSizeDelta: 1024,
			HashChanged:   true,
			Magnitude:     domain.ChangeMinimal,
		},
	}, nil
}

func (f *fakeVersionControl) History(_ context.Context, _, documentID string) ([]domain.Document, error) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Document{
		{ID: "doc-v2", OriginalID: documentID, Version: 2, IsCurrent: true, CreatedAt: now, ChangeNotes: "updated copays"},
		{ID: documentID, Version: 1, CreatedAt: now.Add(-24 * time.Hour)},
	}, nil
}

func (f *fakeVersionControl) Compare(_ context.Context, _, _, _ string) (*domain.ChangeSummary, error) {
	return &domain.ChangeSummary{
		FileSizeDelta:   -200,
		HashChanged:     true,
		ChunkCountDelta: 3,
		Magnitude:       domain.ChangeModerate,
		Metadata: domain.MetadataDiff{
			Modified: map[string][2]any{"plan_year": {"2024", "2025"}},
		},
	}, nil
}

func (f *fakeVersionControl) Rollback(_ context.Context, _, targetVersionID, _ string) (*domain.Document, error) {
	return &domain.Document{ID: "doc-v3", Version: 3, OriginalID: targetVersionID, IsCurrent: true}, nil
}

func (f *fakeVersionControl) DeleteVersion(_ context.Context, _, _, _ string) error {
	return nil
}

type fakeDocumentStore struct{}

func (f *fakeDocumentStore) SaveDocument(context.Context, *domain.Document) error { return nil }

func (f *fakeDocumentStore) GetDocument(context.Context, string, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDocumentStore) FindByContentHash(context.Context, string, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDocumentStore) ListLineage(context.Context, string, string) ([]domain.Document, error) {
	return nil, nil
}

func (f *fakeDocumentStore) ListByStatus(_ context.Context, _ string, status domain.ProcessingStatus) ([]domain.Document, error) {
	if status != domain.StatusFailed {
		return nil, nil
	}
	return []domain.Document{
		{ID: "doc-f", Filename: "failed.pdf", Type: domain.DocTypeNarrative, Status: domain.StatusFailed, Version: 1, ErrorMessage: "extraction failed"},
	}, nil
}

func (f *fakeDocumentStore) CountByStatus(_ context.Context, _ string, status domain.ProcessingStatus) (int, error) {
	switch status {
	case domain.StatusCompleted:
		return 3, nil
	case domain.StatusFailed:
		return 1, nil
	default:
		return 0, nil
	}
}

func (f *fakeDocumentStore) UpdateStatus(context.Context, string, string, domain.ProcessingStatus, string) error {
	return nil
}

func (f *fakeDocumentStore) SaveChunks(context.Context, []domain.Chunk) error { return nil }

func (f *fakeDocumentStore) GetChunks(context.Context, string, string) ([]domain.Chunk, error) {
	return nil, nil
}

func (f *fakeDocumentStore) CountChunks(context.Context, string, string) (int, error) {
	return 0, nil
}

func (f *fakeDocumentStore) SearchChunks(context.Context, driven.ChunkQuery) ([]domain.Chunk, error) {
	return nil, nil
}

type fakeVectorIndex struct{}

func (f *fakeVectorIndex) Upsert(context.Context, []driven.VectorPoint) error { return nil }

func (f *fakeVectorIndex) Query(context.Context, []float32, driven.VectorFilter, int, float64) ([]driven.VectorHit, error) {
	return nil, nil
}

func (f *fakeVectorIndex) Delete(context.Context, driven.VectorFilter) error { return nil }

func (f *fakeVectorIndex) Stats(context.Context) (driven.VectorStats, error) {
	return driven.VectorStats{PointCount: 42, Dimension: 1536}, nil
}

func (f *fakeVectorIndex) Close() error { return nil }
