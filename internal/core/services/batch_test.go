package services

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
)

func newTestBatch(store *fakeDocStore, ex *mockExtractor) *BatchService {
	pipeline := newTestPipeline(store, nil, nil, nil, ex)
	return NewBatchService(store, pipeline)
}

func uploadPaths(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("doc-%02d.pdf", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(fmt.Sprintf("content %d", i)), 0o644))
	}
	return paths
}

func TestProcessBatch_AllSucceed(t *testing.T) {
	store := newFakeDocStore()
	b := newTestBatch(store, &mockExtractor{result: extractionResult()})

	result, err := b.ProcessBatch(context.Background(), "t1", "p1", uploadPaths(t, 8))
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, 8, result.Total)
	assert.Equal(t, 8, result.Succeeded)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Outcomes, 8)
	for _, o := range result.Outcomes {
		assert.Equal(t, "completed", o.Status)
		assert.NotEmpty(t, o.DocumentID)
	}

	completed, err := store.CountByStatus(context.Background(), "t1", domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 8, completed)
}

func TestProcessBatch_TooLargeRejected(t *testing.T) {
	b := newTestBatch(newFakeDocStore(), &mockExtractor{result: extractionResult()})

	paths := make([]string, maxBatchSize+1)
	for i := range paths {
		paths[i] = fmt.Sprintf("/tmp/doc-%d.pdf", i)
	}

	_, err := b.ProcessBatch(context.Background(), "t1", "p1", paths)
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)
}

func TestProcessBatch_PartialFailure(t *testing.T) {
	store := newFakeDocStore()
	b := newTestBatch(store, &mockExtractor{result: extractionResult()})

	paths := uploadPaths(t, 3)
	paths = append(paths, filepath.Join(t.TempDir(), "missing.pdf"))

	result, err := b.ProcessBatch(context.Background(), "t1", "p1", paths)
	require.NoError(t, err, "one failure never aborts the batch")

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	var failed *string
	for i := range result.Outcomes {
		if result.Outcomes[i].Status == "failed" {
			failed = &result.Outcomes[i].Error
		}
	}
	require.NotNil(t, failed)
	assert.NotEmpty(t, *failed)
}

func TestProcessBatch_BatchIDStamped(t *testing.T) {
	store := newFakeDocStore()
	b := newTestBatch(store, &mockExtractor{result: extractionResult()})

	result, err := b.ProcessBatch(context.Background(), "t1", "p1", uploadPaths(t, 1))
	require.NoError(t, err)

	doc, err := store.GetDocument(context.Background(), "t1", result.Outcomes[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, result.BatchID, doc.Metadata["batch_id"])
}

func TestProcessBatch_EmptyInput(t *testing.T) {
	b := newTestBatch(newFakeDocStore(), &mockExtractor{})

	_, err := b.ProcessBatch(context.Background(), "t1", "p1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetryFailed(t *testing.T) {
	store := newFakeDocStore()
	ex := &mockExtractor{result: extractionResult()}
	b := newTestBatch(store, ex)

	require.NoError(t, store.SaveDocument(context.Background(), &domain.Document{
		ID: "bad", TenantID: "t1", Filename: "bad.pdf",
		Type: domain.DocTypeNarrative, Status: domain.StatusFailed,
		ErrorMessage: "pdftotext crashed",
	}))
	require.NoError(t, store.SaveDocument(context.Background(), &domain.Document{
		ID: "good", TenantID: "t1", Filename: "good.pdf",
		Type: domain.DocTypeNarrative, Status: domain.StatusCompleted,
	}))

	result, err := b.RetryFailed(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total, "only failed documents are retried")
	assert.Equal(t, 1, result.Succeeded)

	doc, err := store.GetDocument(context.Background(), "t1", "bad")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
}

func TestRetryFailed_NothingToRetry(t *testing.T) {
	b := newTestBatch(newFakeDocStore(), &mockExtractor{})

	result, err := b.RetryFailed(context.Background(), "t1")
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestProcessArchive(t *testing.T) {
	store := newFakeDocStore()
	b := newTestBatch(store, &mockExtractor{result: extractionResult()})

	archive := filepath.Join(t.TempDir(), "plans.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range map[string]string{
		"spd.pdf":          "pdf one",
		"nested/grid.xlsx": "sheet bytes",
		"notes.docx":       "unsupported",
		".hidden.pdf":      "skipped",
	} {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	result, err := b.ProcessArchive(context.Background(), "t1", "p1", archive)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total, "unsupported and hidden entries are filtered")
	assert.Equal(t, 2, result.Succeeded)
}

// gateExtractor parks every extraction until the test releases it, and
// signals on started as each one begins. It fails the extraction if its
// context died while parked.
type gateExtractor struct {
	inner   mockExtractor
	started chan struct{}
	release chan struct{}
}

func newGateExtractor() *gateExtractor {
	return &gateExtractor{
		inner:   mockExtractor{result: extractionResult()},
		started: make(chan struct{}, maxBatchSize),
		release: make(chan struct{}),
	}
}

func (g *gateExtractor) Extract(ctx context.Context, doc *domain.Document) (*extract.Result, error) {
	g.started <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.inner.Extract(ctx, doc)
}

func TestProcessBatch_CancelledMidFlightFinishesAdmitted(t *testing.T) {
	store := newFakeDocStore()
	gate := newGateExtractor()
	b := NewBatchService(store, newTestPipeline(store, nil, nil, nil, gate))

	paths := uploadPaths(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan *driving.BatchResult, 1)
	go func() {
		result, err := b.ProcessBatch(ctx, "t1", "p1", paths)
		assert.NoError(t, err)
		done <- result
	}()

	// Cancel the batch while the document is mid-extraction. It was
	// already admitted, so it must still run to a terminal status.
	<-gate.started
	cancel()
	close(gate.release)

	result := <-done
	require.NotNil(t, result)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "completed", result.Outcomes[0].Status)

	doc, err := store.GetDocument(context.Background(), "t1", result.Outcomes[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
}

func TestProcessBatch_ConcurrencyBounded(t *testing.T) {
	store := newFakeDocStore()
	gate := newGateExtractor()
	b := NewBatchService(store, newTestPipeline(store, nil, nil, nil, gate))

	paths := uploadPaths(t, 2*batchConcurrency)

	done := make(chan *driving.BatchResult, 1)
	go func() {
		result, err := b.ProcessBatch(context.Background(), "t1", "p1", paths)
		assert.NoError(t, err)
		done <- result
	}()

	for i := 0; i < batchConcurrency; i++ {
		<-gate.started
	}
	select {
	case <-gate.started:
		t.Fatal("more documents in flight than the concurrency bound")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.release)
	result := <-done
	require.NotNil(t, result)
	assert.Equal(t, 2*batchConcurrency, result.Succeeded)
}

func TestProcessArchive_NoSupportedFiles(t *testing.T) {
	b := newTestBatch(newFakeDocStore(), &mockExtractor{})

	archive := filepath.Join(t.TempDir(), "empty.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("readme.md")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nothing usable"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = b.ProcessArchive(context.Background(), "t1", "p1", archive)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
