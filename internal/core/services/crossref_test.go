package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

func crossRefAnalysis() *domain.QueryAnalysis {
	return &domain.QueryAnalysis{
		Intent:                 domain.IntentCost,
		Complexity:             domain.ComplexityMedium,
		BenefitTypes:           []domain.BenefitType{domain.BenefitPrimaryCare},
		RequiresCrossReference: true,
	}
}

func TestCrossRef_NilLLMNoConnections(t *testing.T) {
	c := NewCrossReferencer(newFakeDocStore(), nil)

	refs, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	require.NoError(t, err)
	assert.Nil(t, refs)
}

func TestCrossRef_NoBenefitTypesNoCall(t *testing.T) {
	llm := &mockLLM{}
	c := NewCrossReferencer(newFakeDocStore(), llm)

	analysis := crossRefAnalysis()
	analysis.BenefitTypes = nil

	refs, err := c.Resolve(context.Background(), "t1", "p1", analysis)
	require.NoError(t, err)
	assert.Nil(t, refs)
	assert.Zero(t, llm.calls)
}

func TestCrossRef_EmptySideNoCall(t *testing.T) {
	store := newFakeDocStore()
	store.searchResults = nil // both sides empty
	llm := &mockLLM{}
	c := NewCrossReferencer(store, llm)

	refs, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	require.NoError(t, err)
	assert.Nil(t, refs)
	assert.Zero(t, llm.calls, "no alignment call when a side is empty")
}

func TestCrossRef_AlignsFragments(t *testing.T) {
	store := newFakeDocStore()
	store.searchResults = []domain.Chunk{
		{Content: "Primary care visits require a copay as described in the schedule.", DocumentID: "spd-1"},
	}
	llm := &mockLLM{responses: []string{`[
		{"narrative": 1, "tabular": 1, "connection_type": "copay",
		 "combined": "Primary care visits have a $25 copay.", "confidence": 0.9}
	]`}}
	c := NewCrossReferencer(store, llm)

	refs, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, "copay", refs[0].ConnectionType)
	assert.Equal(t, "Primary care visits have a $25 copay.", refs[0].Combined)
	assert.InDelta(t, 0.9, refs[0].Confidence, 0.001)
	assert.Equal(t, "spd-1", refs[0].NarrativeDocumentID)
	assert.Equal(t, 1, llm.calls)
}

func TestCrossRef_OutOfRangeIndexesDropped(t *testing.T) {
	store := newFakeDocStore()
	store.searchResults = []domain.Chunk{{Content: "fragment", DocumentID: "d1"}}
	llm := &mockLLM{responses: []string{`[
		{"narrative": 7, "tabular": 1, "connection_type": "copay", "combined": "x", "confidence": 0.9},
		{"narrative": 0, "tabular": 1, "connection_type": "copay", "combined": "y", "confidence": 0.9}
	]`}}
	c := NewCrossReferencer(store, llm)

	refs, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCrossRef_UnparsableResponse(t *testing.T) {
	store := newFakeDocStore()
	store.searchResults = []domain.Chunk{{Content: "fragment", DocumentID: "d1"}}
	llm := &mockLLM{responses: []string{"these fragments look related to me"}}
	c := NewCrossReferencer(store, llm)

	refs, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	require.NoError(t, err, "garbage output is not an error, just no connections")
	assert.Nil(t, refs)
}

func TestCrossRef_LLMErrorPropagates(t *testing.T) {
	store := newFakeDocStore()
	store.searchResults = []domain.Chunk{{Content: "fragment", DocumentID: "d1"}}
	llm := &mockLLM{err: errors.New("model offline")}
	c := NewCrossReferencer(store, llm)

	_, err := c.Resolve(context.Background(), "t1", "p1", crossRefAnalysis())
	assert.Error(t, err)
}
