package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

func newTestQuery(store *fakeDocStore, vector *mockVectorIndex, llm driven.LLMService) *QueryService {
	var embedding driven.EmbeddingService
	var vi driven.VectorIndex
	if vector != nil {
		vi = vector
		embedding = &mockEmbedding{}
	}
	retrieval := NewRetrievalEngine(store, vi, embedding, nil, NewCrossReferencer(store, llm))
	return NewQueryService(store, NewAnalyzer(llm), retrieval, NewSynthesizer(llm))
}

func seedCompleted(t *testing.T, store *fakeDocStore) {
	t.Helper()
	require.NoError(t, store.SaveDocument(context.Background(), &domain.Document{
		ID: "doc-ready", TenantID: "t1", Status: domain.StatusCompleted,
		Type: domain.DocTypeTabular,
	}))
}

func TestAsk_EndToEnd(t *testing.T) {
	store := newFakeDocStore()
	seedCompleted(t, store)
	store.searchResults = []domain.Chunk{
		{Content: "Primary Care Visit | $25 copay", DocumentID: "doc-ready", Page: 1, RelevanceScore: 0.6},
	}
	vector := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c1", Score: 0.85, Content: "Office visits to your primary doctor cost a $25 copay.", DocumentID: "doc-ready", Page: 2},
	}}

	q := newTestQuery(store, vector, nil)

	answer, err := q.Ask(context.Background(), "t1", "p1", "What is my primary care copay?", nil)
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.False(t, answer.NotReady)
	assert.NotEmpty(t, answer.Text)
	assert.NotEmpty(t, answer.Sources)
	assert.Equal(t, domain.IntentCost, answer.Intent)
	assert.Positive(t, answer.Confidence)
}

func TestAsk_NotReadyTenant(t *testing.T) {
	store := newFakeDocStore()
	q := newTestQuery(store, nil, nil)

	answer, err := q.Ask(context.Background(), "t1", "p1", "What is my copay?", nil)
	require.NoError(t, err)
	assert.True(t, answer.NotReady)
	assert.Empty(t, answer.Sources)
}

func TestAsk_NoEvidenceIsNotNotReady(t *testing.T) {
	store := newFakeDocStore()
	seedCompleted(t, store)
	q := newTestQuery(store, nil, nil)

	answer, err := q.Ask(context.Background(), "t1", "p1", "Is acupuncture on the moon covered?", nil)
	require.NoError(t, err)
	assert.False(t, answer.NotReady)
	assert.Contains(t, answer.Text, "could not find")
}

func TestAsk_InvalidInput(t *testing.T) {
	q := newTestQuery(newFakeDocStore(), nil, nil)

	_, err := q.Ask(context.Background(), "", "p1", "question", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = q.Ask(context.Background(), "t1", "p1", "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSuggestions(t *testing.T) {
	q := newTestQuery(newFakeDocStore(), nil, nil)

	three, err := q.Suggestions(context.Background(), "t1", 3)
	require.NoError(t, err)
	assert.Len(t, three, 3)

	all, err := q.Suggestions(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	capped, err := q.Suggestions(context.Background(), "t1", 500)
	require.NoError(t, err)
	assert.Equal(t, len(all), len(capped))
}
