package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// Ensure BatchService implements the interface.
var _ driving.BatchProcessor = (*BatchService)(nil)

// maxBatchSize is the hard cap on documents per batch. Larger batches are
// rejected outright, never partially run.
const maxBatchSize = 20

// batchConcurrency bounds how many documents process at once.
const batchConcurrency = 5

// BatchService runs the document pipeline over many files concurrently.
type BatchService struct {
	docStore driven.DocumentStore
	pipeline *Pipeline
}

// NewBatchService creates the batch orchestrator.
func NewBatchService(docStore driven.DocumentStore, pipeline *Pipeline) *BatchService {
	return &BatchService{docStore: docStore, pipeline: pipeline}
}

// ProcessBatch ingests the given files for a tenant. One document's
// failure never aborts the others. Cancellation stops admitting new
// documents; in-flight ones run to completion.
func (s *BatchService) ProcessBatch(ctx context.Context, tenantID, healthPlanID string, paths []string) (*driving.BatchResult, error) {
	if tenantID == "" || len(paths) == 0 {
		return nil, fmt.Errorf("%w: tenant ID and at least one file required", domain.ErrInvalidInput)
	}
	if len(paths) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d files, maximum is %d", domain.ErrBatchTooLarge, len(paths), maxBatchSize)
	}

	batchID := uuid.New().String()
	started := time.Now()
	logger.Section("Batch Processing")
	logger.Info("Batch %s: %d files", batchID, len(paths))

	outcomes := make([]driving.DocumentOutcome, len(paths))
	sem := semaphore.NewWeighted(batchConcurrency)
	var wg sync.WaitGroup

	// Cancellation only stops admission. Admitted documents run on a
	// detached context so they always reach a terminal status; a dead
	// batch context must never strand a document in processing.
	runCtx := context.WithoutCancel(ctx)

	for i, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: the remaining files are never admitted.
			outcomes[i] = driving.DocumentOutcome{
				Filename: filepath.Base(path),
				Status:   "failed",
				Error:    fmt.Sprintf("not started: %v", err),
			}
			continue
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = s.processOne(runCtx, tenantID, healthPlanID, batchID, path)
		}(i, path)
	}
	wg.Wait()

	result := &driving.BatchResult{
		BatchID:   batchID,
		Total:     len(paths),
		Outcomes:  outcomes,
		Elapsed:   time.Since(started),
		StartedAt: started,
	}
	for _, o := range outcomes {
		if o.Status == "completed" {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	logger.Info("Batch %s done: %d succeeded, %d failed in %s",
		batchID, result.Succeeded, result.Failed, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// processOne runs the pipeline for a single file. The pipeline writes
// document state itself; failures here only shape the outcome row.
func (s *BatchService) processOne(ctx context.Context, tenantID, healthPlanID, batchID, path string) driving.DocumentOutcome {
	outcome := driving.DocumentOutcome{Filename: filepath.Base(path)}

	doc, err := s.pipeline.Ingest(ctx, tenantID, healthPlanID, path)
	if doc != nil {
		outcome.DocumentID = doc.ID
		s.stampBatch(ctx, doc, batchID)
	}
	if err != nil {
		outcome.Status = "failed"
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Status = "completed"
	return outcome
}

// stampBatch records the batch ID in document metadata so later status
// lookups can group by run.
func (s *BatchService) stampBatch(ctx context.Context, doc *domain.Document, batchID string) {
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["batch_id"] = batchID
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		logger.Warn("Failed to stamp batch ID on %s: %v", doc.ID, err)
	}
}

// ProcessArchive unpacks a zip archive into a temporary directory, filters
// to supported extensions, and processes the contents as a batch.
func (s *BatchService) ProcessArchive(ctx context.Context, tenantID, healthPlanID, archivePath string) (*driving.BatchResult, error) {
	paths, err := unpackArchive(archivePath)
	if err != nil {
		return nil, fmt.Errorf("unpack archive: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: archive contains no supported documents", domain.ErrInvalidInput)
	}
	logger.Info("Archive %s: %d supported documents", filepath.Base(archivePath), len(paths))

	return s.ProcessBatch(ctx, tenantID, healthPlanID, paths)
}

// RetryFailed re-runs the pipeline for the tenant's failed documents only.
func (s *BatchService) RetryFailed(ctx context.Context, tenantID string) (*driving.BatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant ID required", domain.ErrInvalidInput)
	}

	failed, err := s.docStore.ListByStatus(ctx, tenantID, domain.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed documents: %w", err)
	}

	batchID := uuid.New().String()
	started := time.Now()
	logger.Info("Retry batch %s: %d failed documents", batchID, len(failed))

	outcomes := make([]driving.DocumentOutcome, len(failed))
	sem := semaphore.NewWeighted(batchConcurrency)
	var wg sync.WaitGroup

	// Same admission-only cancellation as ProcessBatch.
	runCtx := context.WithoutCancel(ctx)

	for i := range failed {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = driving.DocumentOutcome{
				DocumentID: failed[i].ID,
				Filename:   failed[i].Filename,
				Status:     "failed",
				Error:      fmt.Sprintf("not started: %v", err),
			}
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			doc := failed[i]
			doc.ErrorMessage = ""
			outcome := driving.DocumentOutcome{DocumentID: doc.ID, Filename: doc.Filename}
			if err := s.pipeline.Process(runCtx, &doc); err != nil {
				outcome.Status = "failed"
				outcome.Error = err.Error()
			} else {
				outcome.Status = "completed"
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	result := &driving.BatchResult{
		BatchID:   batchID,
		Total:     len(failed),
		Outcomes:  outcomes,
		Elapsed:   time.Since(started),
		StartedAt: started,
	}
	for _, o := range outcomes {
		if o.Status == "completed" {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// unpackArchive extracts supported files from a zip into a temp directory
// and returns their paths. Entry names are sanitised against traversal.
func unpackArchive(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dir, err := os.MkdirTemp("", "smartspd-archive-*")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !extract.Supported(f.Name) {
			continue
		}
		name := filepath.Base(f.Name)
		if strings.HasPrefix(name, ".") {
			continue
		}

		dst := filepath.Join(dir, name)
		if err := copyZipEntry(f, dst); err != nil {
			logger.Warn("Skipping archive entry %s: %v", f.Name, err)
			continue
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func copyZipEntry(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
