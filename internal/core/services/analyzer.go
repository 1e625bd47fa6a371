package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// Analyzer classifies a question's intent, complexity and benefit types.
// The LLM pass is optional; the deterministic pattern pass always runs and
// Analyze never returns an error.
type Analyzer struct {
	llm driven.LLMService
}

// NewAnalyzer creates an analyzer. llm may be nil.
func NewAnalyzer(llm driven.LLMService) *Analyzer {
	return &Analyzer{llm: llm}
}

const analyzerPrompt = `You classify member questions about health insurance plans.
Respond with a single JSON object, no prose, with these fields:
  "intent": one of "coverage", "cost", "network", "authorization", "claims", "general"
  "complexity": one of "simple", "medium", "complex"
  "benefit_types": array drawn from "primary_care", "specialist", "emergency_room",
    "urgent_care", "inpatient", "outpatient", "prescription_drug", "preventive_care",
    "mental_health", "deductible", "copay", "coinsurance", "out_of_pocket_maximum"
  "requires_cross_reference": boolean, true when answering needs both a plan rule and a dollar amount
  "member_specific": boolean, true when the question is about the asker's own situation
  "requires_calculation": boolean, true when the answer involves arithmetic`

// llmAnalysis is the shape the model is asked for. Parsed defensively:
// unknown values are dropped, missing fields default.
type llmAnalysis struct {
	Intent                 string   `json:"intent"`
	Complexity             string   `json:"complexity"`
	BenefitTypes           []string `json:"benefit_types"`
	RequiresCrossReference bool     `json:"requires_cross_reference"`
	MemberSpecific         bool     `json:"member_specific"`
	RequiresCalculation    bool     `json:"requires_calculation"`
}

// Analyze classifies the question. The pattern pass supplies every field;
// when the LLM is available its output is merged on top.
func (a *Analyzer) Analyze(ctx context.Context, question string) *domain.QueryAnalysis {
	analysis := patternAnalysis(question)

	if a.llm == nil {
		return analysis
	}

	raw, err := a.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: analyzerPrompt},
		{Role: "user", Content: question},
	}, driven.ChatOptions{MaxTokens: 300, Temperature: 0})
	if err != nil {
		logger.Warn("Query analysis LLM pass failed: %v (pattern result stands)", err)
		return analysis
	}

	var parsed llmAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		logger.Warn("Query analysis response unparsable: %v", err)
		return analysis
	}

	mergeAnalysis(analysis, parsed)
	return analysis
}

// mergeAnalysis folds the model's classification into the pattern result.
// Benefit types are unioned; booleans are sticky once either pass sets them.
func mergeAnalysis(analysis *domain.QueryAnalysis, parsed llmAnalysis) {
	if intent := domain.Intent(parsed.Intent); validIntent(intent) {
		analysis.Intent = intent
	}
	if complexity := domain.Complexity(parsed.Complexity); validComplexity(complexity) {
		analysis.Complexity = complexity
	}

	seen := make(map[domain.BenefitType]bool, len(analysis.BenefitTypes))
	for _, bt := range analysis.BenefitTypes {
		seen[bt] = true
	}
	for _, s := range parsed.BenefitTypes {
		bt := domain.BenefitType(s)
		if validBenefitType(bt) && !seen[bt] {
			analysis.BenefitTypes = append(analysis.BenefitTypes, bt)
			seen[bt] = true
		}
	}

	analysis.RequiresCrossReference = analysis.RequiresCrossReference || parsed.RequiresCrossReference
	analysis.MemberSpecific = analysis.MemberSpecific || parsed.MemberSpecific
	analysis.RequiresCalculation = analysis.RequiresCalculation || parsed.RequiresCalculation

	// Cost and coverage questions about a known benefit need the rule and
	// the amount, which live in different document types.
	if len(analysis.BenefitTypes) > 0 &&
		(analysis.Intent == domain.IntentCost || analysis.Intent == domain.IntentCoverage) {
		analysis.RequiresCrossReference = true
	}
}

var intentPatterns = []struct {
	intent domain.Intent
	terms  []string
}{
	{domain.IntentAuthorization, []string{"prior auth", "preauthorization", "pre-authorization", "precertification", "referral", "approval", "need approval"}},
	{domain.IntentClaims, []string{"claim", "appeal", "reimburse", "denied", "denial"}},
	{domain.IntentCost, []string{"how much", "cost", "copay", "coinsurance", "deductible", "out-of-pocket", "out of pocket", "price", "pay for", "do i pay"}},
	{domain.IntentNetwork, []string{"in-network", "out-of-network", "in network", "out of network", "provider", "which doctor", "find a doctor"}},
	{domain.IntentCoverage, []string{"cover", "covered", "coverage", "benefit", "include", "eligible"}},
}

// patternAnalysis is the deterministic pass. It always succeeds.
func patternAnalysis(question string) *domain.QueryAnalysis {
	lower := strings.ToLower(question)

	analysis := &domain.QueryAnalysis{
		Intent:       domain.IntentGeneral,
		BenefitTypes: extract.BenefitTypesIn(question),
		Keywords:     extract.Keywords(question),
	}

	for _, p := range intentPatterns {
		if containsAny(lower, p.terms) {
			analysis.Intent = p.intent
			break
		}
	}

	analysis.Complexity = patternComplexity(lower, len(analysis.BenefitTypes))
	analysis.MemberSpecific = containsAny(lower, []string{"my ", "i ", "i'", "me ", "am i"})
	analysis.RequiresCalculation = containsAny(lower, []string{"how much", "total", "remaining", "left on", "calculate", "add up"})
	if len(analysis.BenefitTypes) > 0 &&
		(analysis.Intent == domain.IntentCost || analysis.Intent == domain.IntentCoverage) {
		analysis.RequiresCrossReference = true
	}

	return analysis
}

func patternComplexity(lower string, benefitTypes int) domain.Complexity {
	words := len(strings.Fields(lower))
	comparative := containsAny(lower, []string{"compare", "difference", "versus", " vs ", "better", "both"})

	switch {
	case comparative || benefitTypes > 2 || words > 25:
		return domain.ComplexityComplex
	case words <= 10 && benefitTypes <= 1:
		return domain.ComplexitySimple
	default:
		return domain.ComplexityMedium
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func validIntent(i domain.Intent) bool {
	switch i {
	case domain.IntentCoverage, domain.IntentCost, domain.IntentNetwork,
		domain.IntentAuthorization, domain.IntentClaims, domain.IntentGeneral:
		return true
	}
	return false
}

func validComplexity(c domain.Complexity) bool {
	switch c {
	case domain.ComplexitySimple, domain.ComplexityMedium, domain.ComplexityComplex:
		return true
	}
	return false
}

func validBenefitType(b domain.BenefitType) bool {
	switch b {
	case domain.BenefitPrimaryCare, domain.BenefitSpecialist, domain.BenefitEmergencyRoom,
		domain.BenefitUrgentCare, domain.BenefitInpatient, domain.BenefitOutpatient,
		domain.BenefitPrescription, domain.BenefitPreventive, domain.BenefitMentalHealth,
		domain.BenefitDeductible, domain.BenefitCopay, domain.BenefitCoinsurance,
		domain.BenefitOutOfPocketMax, domain.BenefitOther:
		return true
	}
	return false
}

// extractJSON trims anything around the outermost JSON object. Models
// occasionally wrap output in code fences despite instructions.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
