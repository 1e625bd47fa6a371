package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// contextResults is how many fused results feed the generation prompt.
const contextResults = 5

// Synthesizer turns fused evidence into a member-facing answer with an
// independently computed confidence score.
type Synthesizer struct {
	llm driven.LLMService
}

// NewSynthesizer creates a synthesizer. llm may be nil; every answer then
// takes the deterministic fallback path.
func NewSynthesizer(llm driven.LLMService) *Synthesizer {
	return &Synthesizer{llm: llm}
}

const synthesisPrompt = `You are a health plan benefits expert answering a member's question using
only the numbered evidence fragments provided. Do not invent coverage facts. Respond with a
single JSON object, no prose:
  "answer": direct answer in plain language, citing amounts exactly as the evidence states them
  "reasoning": one or two sentences on how the evidence supports the answer
  "confidence": "high", "medium" or "low" - your own assessment of the evidence
  "related_topics": up to 3 short strings
  "follow_ups": up to 3 natural follow-up questions`

type llmAnswer struct {
	Answer        string   `json:"answer"`
	Reasoning     string   `json:"reasoning"`
	Confidence    string   `json:"confidence"`
	RelatedTopics []string `json:"related_topics"`
	FollowUps     []string `json:"follow_ups"`
}

// Synthesize builds the answer from the question, its analysis and the
// fused evidence. Generation failure degrades to a deterministic answer
// built from the best fragment; it never propagates.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, analysis *domain.QueryAnalysis, results []domain.RetrievalResult, conv *domain.ConversationContext) *domain.Answer {
	answer := &domain.Answer{
		Intent:     analysis.Intent,
		Complexity: analysis.Complexity,
		Sources:    citations(results),
	}

	var parsed *llmAnswer
	if s.llm != nil && len(results) > 0 {
		parsed = s.generate(ctx, question, results, conv)
	}

	if parsed != nil {
		answer.Text = parsed.Answer
		answer.Reasoning = parsed.Reasoning
		answer.RelatedTopics = parsed.RelatedTopics
		answer.FollowUps = parsed.FollowUps
	} else {
		answer.Text, answer.Reasoning = fallbackAnswer(results)
	}

	selfReport := ""
	if parsed != nil {
		selfReport = strings.ToLower(parsed.Confidence)
	}
	answer.Confidence = overallConfidence(results, selfReport, analysis.Complexity)
	answer.ConfidenceLabel = confidenceLabel(answer.Confidence)
	if parsed == nil {
		answer.ConfidenceLabel = "Low"
	}

	return answer
}

// NotReadyAnswer is the distinct response for a tenant with no completed
// documents. It is not a failed lookup; there was nothing to look in.
func NotReadyAnswer(analysis *domain.QueryAnalysis) *domain.Answer {
	return &domain.Answer{
		Text: "Your plan documents are still being processed. " +
			"Please try again once processing has completed.",
		ConfidenceLabel: "Low",
		Intent:          analysis.Intent,
		Complexity:      analysis.Complexity,
		NotReady:        true,
	}
}

func (s *Synthesizer) generate(ctx context.Context, question string, results []domain.RetrievalResult, conv *domain.ConversationContext) *llmAnswer {
	raw, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: synthesisPrompt},
		{Role: "user", Content: renderSynthesisInput(question, results, conv)},
	}, driven.ChatOptions{MaxTokens: 1000, Temperature: 0.2})
	if err != nil {
		logger.Warn("Answer generation failed: %v (falling back)", err)
		return nil
	}

	var parsed llmAnswer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		logger.Warn("Answer response unparsable: %v (falling back)", err)
		return nil
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return nil
	}
	return &parsed
}

func renderSynthesisInput(question string, results []domain.RetrievalResult, conv *domain.ConversationContext) string {
	var b strings.Builder
	if conv != nil && conv.PreviousQueries != "" {
		b.WriteString("Earlier in this conversation:\n")
		b.WriteString(conv.PreviousQueries)
		b.WriteString("\n\n")
	}

	b.WriteString("EVIDENCE:\n")
	limit := len(results)
	if limit > contextResults {
		limit = contextResults
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, results[i].Source, truncate(results[i].Content, 600))
	}

	b.WriteString("\nQUESTION: ")
	b.WriteString(question)
	return b.String()
}

// fallbackAnswer builds a deterministic answer from the best fragment.
func fallbackAnswer(results []domain.RetrievalResult) (text, reasoning string) {
	if len(results) == 0 {
		return "I could not find information about that in your plan documents. " +
				"You may want to contact member services for help with this question.",
			"No relevant evidence was retrieved."
	}
	best := results[0]
	return fmt.Sprintf("According to your plan documents: %s", truncate(best.Content, 400)),
		fmt.Sprintf("Taken directly from the highest-confidence %s match.", best.Source)
}

// overallConfidence is computed independently of the generated text so a
// fluent answer over weak evidence still reads as weak.
func overallConfidence(results []domain.RetrievalResult, selfReport string, complexity domain.Complexity) float64 {
	conf := 0.5

	if len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += r.Confidence
		}
		avg := sum / float64(len(results))
		conf += (avg - 0.5) * 0.3
	}

	switch selfReport {
	case "high":
		conf += 0.2
	case "low":
		conf -= 0.2
	}

	switch complexity {
	case domain.ComplexitySimple:
		conf += 0.1
	case domain.ComplexityComplex:
		conf -= 0.1
	}

	// Corroboration across several results, or none at all.
	if len(results) >= 3 {
		conf += 0.1
	}
	if len(results) == 0 {
		conf -= 0.3
	}

	return clamp01(conf)
}

func confidenceLabel(conf float64) string {
	switch {
	case conf >= 0.75:
		return "High"
	case conf >= 0.5:
		return "Medium"
	default:
		return "Low"
	}
}

func citations(results []domain.RetrievalResult) []domain.Citation {
	out := make([]domain.Citation, 0, len(results))
	for _, r := range results {
		out = append(out, domain.Citation{
			Source:     r.Source,
			DocumentID: r.DocumentID,
			Page:       r.Page,
			Section:    r.Section,
			Score:      r.Score,
		})
	}
	return out
}
