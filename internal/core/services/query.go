package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers member questions end to end: analyse, retrieve,
// synthesize.
type QueryService struct {
	docStore    driven.DocumentStore
	analyzer    *Analyzer
	retrieval   *RetrievalEngine
	synthesizer *Synthesizer
}

// NewQueryService creates the query service.
func NewQueryService(docStore driven.DocumentStore, analyzer *Analyzer, retrieval *RetrievalEngine, synthesizer *Synthesizer) *QueryService {
	return &QueryService{
		docStore:    docStore,
		analyzer:    analyzer,
		retrieval:   retrieval,
		synthesizer: synthesizer,
	}
}

// Ask answers a question about the tenant's plan documents. A tenant with
// no completed documents gets a NotReady answer; a question with no
// matching evidence gets a normal low-confidence answer.
func (s *QueryService) Ask(ctx context.Context, tenantID, healthPlanID, question string, conv *domain.ConversationContext) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if tenantID == "" || question == "" {
		return nil, fmt.Errorf("%w: tenant ID and question required", domain.ErrInvalidInput)
	}

	logger.Section("Query")
	logger.Debug("Question: %q", question)

	analysis := s.analyzer.Analyze(ctx, question)
	logger.Debug("Analysis: intent=%s complexity=%s benefit_types=%v cross_ref=%t",
		analysis.Intent, analysis.Complexity, analysis.BenefitTypes, analysis.RequiresCrossReference)

	completed, err := s.docStore.CountByStatus(ctx, tenantID, domain.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("readiness check: %w", err)
	}
	if completed == 0 {
		logger.Info("Tenant %s has no completed documents", tenantID)
		return NotReadyAnswer(analysis), nil
	}

	results := s.retrieval.Retrieve(ctx, tenantID, healthPlanID, question, analysis)
	answer := s.synthesizer.Synthesize(ctx, question, analysis, results, conv)

	logger.Info("Answer: confidence=%.2f (%s), %d sources",
		answer.Confidence, answer.ConfidenceLabel, len(answer.Sources))
	return answer, nil
}

// querySuggestions are the stock questions offered to members.
var querySuggestions = []string{
	"What is my deductible?",
	"How much is a primary care visit?",
	"What does an emergency room visit cost?",
	"Are prescription drugs covered?",
	"Do I need a referral to see a specialist?",
	"What is my out-of-pocket maximum?",
	"Is mental health care covered?",
	"Does urgent care require prior authorization?",
	"What preventive care is covered at no cost?",
	"How much is an out-of-network specialist visit?",
}

// Suggestions returns common questions, capped at limit.
func (s *QueryService) Suggestions(_ context.Context, _ string, limit int) ([]string, error) {
	if limit <= 0 || limit > len(querySuggestions) {
		limit = len(querySuggestions)
	}
	out := make([]string, limit)
	copy(out, querySuggestions[:limit])
	return out, nil
}
