package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
)

// fakeDocStore is an in-memory DocumentStore for service tests. It honours
// the status transition rules the way the real store does.
type fakeDocStore struct {
	mu     sync.Mutex
	docs   map[string]*domain.Document
	chunks map[string][]domain.Chunk

	searchResults []domain.Chunk
	searchErr     error
	saveErr       error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (f *fakeDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, tenantID, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocStore) FindByContentHash(_ context.Context, tenantID, hash string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.TenantID == tenantID && doc.ContentHash == hash && doc.IsCurrent && !doc.Deleted {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocStore) ListLineage(_ context.Context, tenantID, originalID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.TenantID == tenantID && doc.LineageID() == originalID {
			out = append(out, *doc)
		}
	}
	// Newest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Version > out[i].Version {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeDocStore) ListByStatus(_ context.Context, tenantID string, status domain.ProcessingStatus) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.TenantID == tenantID && doc.Status == status {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocStore) CountByStatus(_ context.Context, tenantID string, status domain.ProcessingStatus) (int, error) {
	docs, _ := f.ListByStatus(context.Background(), tenantID, status)
	return len(docs), nil
}

func (f *fakeDocStore) UpdateStatus(_ context.Context, tenantID, id string, status domain.ProcessingStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if doc.Status == domain.StatusProcessing && status == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}
	if !doc.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.Status, status)
	}
	doc.Status = status
	doc.ErrorMessage = errMsg
	return nil
}

func (f *fakeDocStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[chunks[0].DocumentID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (f *fakeDocStore) GetChunks(_ context.Context, _, documentID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Chunk(nil), f.chunks[documentID]...), nil
}

func (f *fakeDocStore) CountChunks(_ context.Context, _, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks[documentID]), nil
}

func (f *fakeDocStore) SearchChunks(_ context.Context, _ driven.ChunkQuery) ([]domain.Chunk, error) {
	return f.searchResults, f.searchErr
}

// mockVectorIndex records upserts and serves canned hits.
type mockVectorIndex struct {
	mu       sync.Mutex
	upserted []driven.VectorPoint
	deleted  []driven.VectorFilter
	hits     []driven.VectorHit
	err      error
}

func (m *mockVectorIndex) Upsert(_ context.Context, points []driven.VectorPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, points...)
	return m.err
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, _ driven.VectorFilter, _ int, _ float64) ([]driven.VectorHit, error) {
	return m.hits, m.err
}

func (m *mockVectorIndex) Delete(_ context.Context, filter driven.VectorFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, filter)
	return nil
}

func (m *mockVectorIndex) Stats(_ context.Context) (driven.VectorStats, error) {
	return driven.VectorStats{}, nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockEmbedding returns fixed-size vectors.
type mockEmbedding struct {
	err   error
	calls int
}

func (m *mockEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls++
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (m *mockEmbedding) Dimensions() int   { return 3 }
func (m *mockEmbedding) ModelName() string { return "test-embedding" }
func (m *mockEmbedding) Close() error      { return nil }

// mockGraph records writes and serves canned traversal hits.
type mockGraph struct {
	mu       sync.Mutex
	records  []domain.BenefitRecord
	edges    []domain.BenefitEdge
	hits     []driven.GraphHit
	err      error
	analyzed int
}

func (m *mockGraph) UpsertBenefits(_ context.Context, records []domain.BenefitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return m.err
}

func (m *mockGraph) AddEdges(_ context.Context, edges []domain.BenefitEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edges...)
	return m.err
}

func (m *mockGraph) Traverse(_ context.Context, _, _ string, _ []domain.BenefitType, _ int) ([]driven.GraphHit, error) {
	return m.hits, m.err
}

func (m *mockGraph) AnalyzeCoverage(_ context.Context, _, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzed++
	return 0, nil
}

func (m *mockGraph) DeleteByDocument(_ context.Context, _, _ string) error { return nil }

// mockLLM replays canned responses in order, then repeats the last one.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(messages) > 0 {
		m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *mockLLM) ModelName() string { return "test-llm" }
func (m *mockLLM) Close() error      { return nil }

// mockExtractor serves a canned result, stamped with the document's
// identity the way real extractors do.
type mockExtractor struct {
	result *extract.Result
	err    error
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, doc *domain.Document) (*extract.Result, error) {
	m.calls++
	if m.err != nil || m.result == nil {
		return nil, m.err
	}
	out := *m.result
	out.Chunks = append([]domain.Chunk(nil), m.result.Chunks...)
	for i := range out.Chunks {
		out.Chunks[i].TenantID = doc.TenantID
		out.Chunks[i].DocumentID = doc.ID
	}
	out.Benefits = append([]domain.BenefitRecord(nil), m.result.Benefits...)
	for i := range out.Benefits {
		out.Benefits[i].TenantID = doc.TenantID
		out.Benefits[i].DocumentID = doc.ID
	}
	return &out, nil
}
