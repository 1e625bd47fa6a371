package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

func evidence(confidences ...float64) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, len(confidences))
	for i, c := range confidences {
		out[i] = domain.RetrievalResult{
			Content:    "evidence fragment",
			Source:     domain.SourceVector,
			Confidence: c,
			DocumentID: "d1",
			Page:       3,
		}
	}
	return out
}

func TestSynthesize_GeneratedAnswer(t *testing.T) {
	llm := &mockLLM{responses: []string{`{
		"answer": "Your primary care copay is $25.",
		"reasoning": "The benefit grid lists $25 for primary care.",
		"confidence": "high",
		"related_topics": ["specialist visits"],
		"follow_ups": ["What is my specialist copay?"]
	}`}}
	s := NewSynthesizer(llm)

	answer := s.Synthesize(context.Background(), "what is my copay?", simpleAnalysis(), evidence(0.9, 0.8, 0.7), nil)
	require.NotNil(t, answer)

	assert.Equal(t, "Your primary care copay is $25.", answer.Text)
	assert.Equal(t, "The benefit grid lists $25 for primary care.", answer.Reasoning)
	assert.Len(t, answer.Sources, 3)
	assert.Equal(t, []string{"specialist visits"}, answer.RelatedTopics)
	assert.False(t, answer.NotReady)

	// 0.5 + (0.8-0.5)*0.3 + 0.2 high + 0.1 three sources = 0.89
	assert.InDelta(t, 0.89, answer.Confidence, 0.001)
	assert.Equal(t, "High", answer.ConfidenceLabel)
}

func TestSynthesize_LLMFailureFallsBack(t *testing.T) {
	llm := &mockLLM{err: errors.New("model offline")}
	s := NewSynthesizer(llm)

	results := evidence(0.9)
	results[0].Content = "Primary Care Visit | $25 copay"

	answer := s.Synthesize(context.Background(), "copay?", simpleAnalysis(), results, nil)
	require.NotNil(t, answer)
	assert.Contains(t, answer.Text, "Primary Care Visit | $25 copay")
	assert.Equal(t, "Low", answer.ConfidenceLabel)
}

func TestSynthesize_NilLLMFallback(t *testing.T) {
	s := NewSynthesizer(nil)

	answer := s.Synthesize(context.Background(), "copay?", simpleAnalysis(), evidence(0.9), nil)
	require.NotNil(t, answer)
	assert.Contains(t, answer.Text, "According to your plan documents")
	assert.Equal(t, "Low", answer.ConfidenceLabel)
}

func TestSynthesize_NoEvidence(t *testing.T) {
	s := NewSynthesizer(&mockLLM{})

	answer := s.Synthesize(context.Background(), "something obscure", simpleAnalysis(), nil, nil)
	require.NotNil(t, answer)

	assert.Contains(t, answer.Text, "could not find")
	assert.Empty(t, answer.Sources)
	assert.False(t, answer.NotReady, "no evidence is not the same as not ready")

	// 0.5 - 0.3 zero sources = 0.2
	assert.InDelta(t, 0.2, answer.Confidence, 0.001)
	assert.Equal(t, "Low", answer.ConfidenceLabel)
}

func TestSynthesize_ConversationContextInPrompt(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"answer": "As discussed, $25.", "confidence": "medium"}`}}
	s := NewSynthesizer(llm)

	conv := &domain.ConversationContext{PreviousQueries: "Q: what is a copay? A: a fixed fee."}
	s.Synthesize(context.Background(), "and for primary care?", simpleAnalysis(), evidence(0.8), conv)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "what is a copay?")
	assert.Contains(t, llm.prompts[0], "and for primary care?")
}

func TestNotReadyAnswer(t *testing.T) {
	answer := NotReadyAnswer(simpleAnalysis())
	assert.True(t, answer.NotReady)
	assert.Contains(t, answer.Text, "still being processed")
	assert.Equal(t, domain.IntentCost, answer.Intent)
}

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name       string
		results    []domain.RetrievalResult
		selfReport string
		complexity domain.Complexity
		expected   float64
	}{
		{
			name:       "zero sources floor",
			results:    nil,
			selfReport: "",
			complexity: domain.ComplexityMedium,
			expected:   0.2,
		},
		{
			name:       "strong corroborated simple",
			results:    evidence(1, 1, 1),
			selfReport: "high",
			complexity: domain.ComplexitySimple,
			expected:   1.0, // clamped from 1.05
		},
		{
			name:       "weak evidence low report complex",
			results:    evidence(0.3),
			selfReport: "low",
			complexity: domain.ComplexityComplex,
			expected:   0.5 - 0.06 - 0.2 - 0.1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := overallConfidence(tc.results, tc.selfReport, tc.complexity)
			assert.InDelta(t, tc.expected, got, 0.0001)
		})
	}
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, "High", confidenceLabel(0.8))
	assert.Equal(t, "Medium", confidenceLabel(0.6))
	assert.Equal(t, "Low", confidenceLabel(0.3))
}
