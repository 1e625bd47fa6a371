package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// embedBatchSize is how many chunks are embedded per request.
const embedBatchSize = 32

// Pipeline processes one document end to end: extract, persist chunks,
// embed, index vectors, store benefit records, finalize status.
type Pipeline struct {
	docStore  driven.DocumentStore
	vector    driven.VectorIndex
	embedding driven.EmbeddingService
	graph     driven.GraphStore

	narrative extract.Extractor
	tabular   extract.Extractor

	// enricher optionally tags chunks before embedding. Nil skips the stage.
	enricher *Enricher

	// embedLimiter paces embedding requests across concurrent documents.
	embedLimiter *rate.Limiter
}

// EnableEnrichment turns on model-based chunk tagging.
func (p *Pipeline) EnableEnrichment(llm driven.LLMService) {
	if llm != nil {
		p.enricher = NewEnricher(llm)
	}
}

// NewPipeline creates a pipeline. vector, embedding and graph may be nil;
// the corresponding stages are skipped and the document still completes.
func NewPipeline(
	docStore driven.DocumentStore,
	vector driven.VectorIndex,
	embedding driven.EmbeddingService,
	graph driven.GraphStore,
	narrative extract.Extractor,
	tabular extract.Extractor,
) *Pipeline {
	return &Pipeline{
		docStore:     docStore,
		vector:       vector,
		embedding:    embedding,
		graph:        graph,
		narrative:    narrative,
		tabular:      tabular,
		embedLimiter: rate.NewLimiter(rate.Limit(2), 1),
	}
}

// Ingest registers the file at path as a new document and processes it.
// Re-uploading identical content returns the existing document untouched.
func (p *Pipeline) Ingest(ctx context.Context, tenantID, healthPlanID, path string) (*domain.Document, error) {
	if tenantID == "" || path == "" {
		return nil, fmt.Errorf("%w: tenant ID and path required", domain.ErrInvalidInput)
	}

	filename := filepath.Base(path)
	docType, err := extract.DetectType(filename)
	if err != nil {
		return nil, err
	}

	hash, size, err := extract.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	if existing, err := p.docStore.FindByContentHash(ctx, tenantID, hash); err == nil {
		logger.Info("Duplicate upload %s matches document %s, skipping", filename, existing.ID)
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		HealthPlanID: healthPlanID,
		Filename:     filename,
		FilePath:     path,
		FileSize:     size,
		ContentHash:  hash,
		Type:         docType,
		Status:       domain.StatusUploaded,
		Version:      1,
		IsCurrent:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		// A concurrent identical upload can win the insert between our
		// duplicate check and here. Hand back the winner's document.
		if errors.Is(err, domain.ErrAlreadyExists) {
			if existing, lookupErr := p.docStore.FindByContentHash(ctx, tenantID, hash); lookupErr == nil {
				logger.Info("Duplicate upload %s matches document %s, skipping", filename, existing.ID)
				return existing, nil
			}
		}
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := p.Process(ctx, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Process runs the pipeline stages for an already-registered document.
// A document that is already processing is left alone; duplicate triggers
// are a no-op.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) error {
	logger.Section("Document Pipeline")
	logger.Debug("Processing %s (%s, %s)", doc.Filename, doc.ID, doc.Type)

	err := p.docStore.UpdateStatus(ctx, doc.TenantID, doc.ID, domain.StatusProcessing, "")
	if errors.Is(err, domain.ErrAlreadyProcessing) {
		logger.Info("Document %s already processing, skipping duplicate trigger", doc.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	doc.Status = domain.StatusProcessing

	if err := p.run(ctx, doc); err != nil {
		if serr := p.docStore.UpdateStatus(ctx, doc.TenantID, doc.ID, domain.StatusFailed, err.Error()); serr != nil {
			logger.Warn("Failed to mark document %s failed: %v", doc.ID, serr)
		}
		doc.Status = domain.StatusFailed
		doc.ErrorMessage = err.Error()
		return err
	}

	if err := p.docStore.UpdateStatus(ctx, doc.TenantID, doc.ID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	doc.Status = domain.StatusCompleted
	return nil
}

func (p *Pipeline) run(ctx context.Context, doc *domain.Document) error {
	extractor, err := p.extractorFor(doc.Type)
	if err != nil {
		return err
	}

	result, err := extractor.Extract(ctx, doc)
	if err != nil {
		return err
	}
	logger.Debug("Extracted %d chunks, %d benefit records", len(result.Chunks), len(result.Benefits))

	doc.PageCount = result.PageCount
	doc.Sections = result.Sections
	if len(result.PlanFields) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		for k, v := range result.PlanFields {
			doc.Metadata[k] = v
		}
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save extraction metadata: %w", err)
	}

	p.enricher.Enrich(ctx, result.Chunks)
	p.embedChunks(ctx, result.Chunks)

	if err := p.docStore.SaveChunks(ctx, result.Chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	if err := p.indexVectors(ctx, doc, result.Chunks); err != nil {
		return err
	}

	return p.storeBenefits(ctx, doc, result.Benefits)
}

func (p *Pipeline) extractorFor(t domain.DocumentType) (extract.Extractor, error) {
	switch t {
	case domain.DocTypeNarrative:
		if p.narrative != nil {
			return p.narrative, nil
		}
	case domain.DocTypeTabular:
		if p.tabular != nil {
			return p.tabular, nil
		}
	}
	return nil, fmt.Errorf("%w: no extractor for %q", domain.ErrUnsupportedType, t)
}

// embedChunks attaches embeddings in place. A failed batch leaves its
// chunks unvectorized and keyword searchable; it never fails the pipeline.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []domain.Chunk) {
	if p.embedding == nil || len(chunks) == 0 {
		return
	}

	model := p.embedding.ModelName()
	embedded := 0

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if err := p.embedLimiter.Wait(ctx); err != nil {
			logger.Warn("Embedding stopped: %v (%d of %d chunks embedded)", err, embedded, len(chunks))
			return
		}

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Content
		}

		vectors, err := p.embedding.EmbedBatch(ctx, texts)
		if err != nil || len(vectors) != len(batch) {
			logger.Warn("Embedding batch failed: %v (chunks %d-%d left unvectorized)", err, start, end-1)
			continue
		}

		for i := range batch {
			batch[i].Embedding = vectors[i]
			batch[i].EmbeddingModel = model
		}
		embedded += len(batch)
	}

	logger.Debug("Embedded %d/%d chunks", embedded, len(chunks))
}

// indexVectors replaces the document's points in the similarity index.
func (p *Pipeline) indexVectors(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if p.vector == nil {
		return nil
	}

	filter := driven.VectorFilter{TenantID: doc.TenantID, DocumentID: doc.ID}
	if err := p.vector.Delete(ctx, filter); err != nil {
		return fmt.Errorf("clear stale vectors: %w", err)
	}

	var points []driven.VectorPoint
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			continue
		}
		points = append(points, driven.VectorPoint{
			ChunkID:      chunk.ID,
			Vector:       chunk.Embedding,
			Content:      chunk.Content,
			TenantID:     chunk.TenantID,
			HealthPlanID: doc.HealthPlanID,
			DocumentID:   chunk.DocumentID,
			DocumentType: doc.Type,
			ChunkIndex:   chunk.Index,
			Page:         chunk.Page,
			Section:      chunk.Section,
			Kind:         chunk.Kind,
		})
	}
	if len(points) == 0 {
		return nil
	}

	if err := p.vector.Upsert(ctx, points); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}
	logger.Debug("Indexed %d vectors for %s", len(points), doc.ID)
	return nil
}

// storeBenefits replaces the document's benefit records and rebuilds the
// plan's coverage relationships.
func (p *Pipeline) storeBenefits(ctx context.Context, doc *domain.Document, records []domain.BenefitRecord) error {
	if p.graph == nil || len(records) == 0 {
		return nil
	}

	if err := p.graph.DeleteByDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return fmt.Errorf("clear stale benefit records: %w", err)
	}
	if err := p.graph.UpsertBenefits(ctx, records); err != nil {
		return fmt.Errorf("store benefit records: %w", err)
	}

	if err := p.graph.AddEdges(ctx, adjacencyEdges(records)); err != nil {
		return fmt.Errorf("store benefit edges: %w", err)
	}

	created, err := p.graph.AnalyzeCoverage(ctx, doc.TenantID, doc.HealthPlanID)
	if err != nil {
		// Relationship analysis enriches traversal but the records stand
		// on their own.
		logger.Warn("Coverage analysis failed for %s: %v", doc.ID, err)
		return nil
	}
	logger.Debug("Coverage analysis created %d edges", created)
	return nil
}

// adjacencyEdges links benefit records that appeared next to each other in
// the source document. Co-location in a grid or table is a weak but real
// relationship signal.
func adjacencyEdges(records []domain.BenefitRecord) []domain.BenefitEdge {
	var edges []domain.BenefitEdge
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.Page != cur.Page {
			continue
		}
		edges = append(edges, domain.BenefitEdge{
			FromID:   prev.ID,
			ToID:     cur.ID,
			Type:     domain.EdgeRelatedTo,
			Strength: 0.5,
		})
	}
	return edges
}
