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

// candidatesPerSide caps how many chunks of each document type are offered
// to the alignment call.
const candidatesPerSide = 5

// CrossReferencer connects narrative plan rules with tabular amounts for
// the same benefit. A connection is only asserted when candidate fragments
// exist on both sides.
type CrossReferencer struct {
	docStore driven.DocumentStore
	llm      driven.LLMService
}

// NewCrossReferencer creates a cross-referencer. llm may be nil, in which
// case Resolve always returns no connections.
func NewCrossReferencer(docStore driven.DocumentStore, llm driven.LLMService) *CrossReferencer {
	return &CrossReferencer{docStore: docStore, llm: llm}
}

const crossRefPrompt = `You connect two views of the same health plan: narrative rule text and
benefit grid rows. Given numbered NARRATIVE and TABULAR fragments, find pairs that describe
the same benefit. Respond with a JSON array, no prose. Each element:
  "narrative": narrative fragment number (integer)
  "tabular": tabular fragment number (integer)
  "connection_type": short label for what they agree on, e.g. "copay"
  "combined": one sentence merging the rule and the amount
  "confidence": 0 to 1
Only include pairs that clearly refer to the same benefit. An empty array is a valid answer.`

type llmConnection struct {
	Narrative      int     `json:"narrative"`
	Tabular        int     `json:"tabular"`
	ConnectionType string  `json:"connection_type"`
	Combined       string  `json:"combined"`
	Confidence     float64 `json:"confidence"`
}

// Resolve finds rule-to-amount connections for the analysed benefit types.
// No candidates on either side means no connections and no LLM call.
func (c *CrossReferencer) Resolve(ctx context.Context, tenantID, healthPlanID string, analysis *domain.QueryAnalysis) ([]domain.CrossReference, error) {
	if c.llm == nil {
		return nil, nil
	}

	terms := benefitTerms(analysis)
	if len(terms) == 0 {
		return nil, nil
	}

	narrative, err := c.candidates(ctx, tenantID, healthPlanID, domain.DocTypeNarrative, terms)
	if err != nil {
		return nil, fmt.Errorf("narrative candidates: %w", err)
	}
	tabular, err := c.candidates(ctx, tenantID, healthPlanID, domain.DocTypeTabular, terms)
	if err != nil {
		return nil, fmt.Errorf("tabular candidates: %w", err)
	}

	if len(narrative) == 0 || len(tabular) == 0 {
		logger.Debug("Cross-reference: %d narrative / %d tabular candidates, nothing to align",
			len(narrative), len(tabular))
		return nil, nil
	}

	raw, err := c.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: crossRefPrompt},
		{Role: "user", Content: renderCandidates(narrative, tabular)},
	}, driven.ChatOptions{MaxTokens: 800, Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("alignment call: %w", err)
	}

	var parsed []llmConnection
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &parsed); err != nil {
		logger.Warn("Cross-reference response unparsable: %v", err)
		return nil, nil
	}

	var refs []domain.CrossReference
	for _, conn := range parsed {
		// 1-based fragment numbers, as rendered in the prompt.
		ni, ti := conn.Narrative-1, conn.Tabular-1
		if ni < 0 || ni >= len(narrative) || ti < 0 || ti >= len(tabular) {
			continue
		}
		refs = append(refs, domain.CrossReference{
			NarrativeFragment:   narrative[ni].Content,
			TabularFragment:     tabular[ti].Content,
			ConnectionType:      conn.ConnectionType,
			Combined:            conn.Combined,
			Confidence:          clamp01(conn.Confidence),
			NarrativeDocumentID: narrative[ni].DocumentID,
			TabularDocumentID:   tabular[ti].DocumentID,
		})
	}

	logger.Debug("Cross-reference: %d connections from %d narrative / %d tabular candidates",
		len(refs), len(narrative), len(tabular))
	return refs, nil
}

func (c *CrossReferencer) candidates(ctx context.Context, tenantID, healthPlanID string, docType domain.DocumentType, terms []string) ([]domain.Chunk, error) {
	return c.docStore.SearchChunks(ctx, driven.ChunkQuery{
		TenantID:     tenantID,
		HealthPlanID: healthPlanID,
		DocumentType: docType,
		Terms:        terms,
		Limit:        candidatesPerSide,
	})
}

// benefitTerms renders the analysed benefit types as search terms.
func benefitTerms(analysis *domain.QueryAnalysis) []string {
	if analysis == nil {
		return nil
	}
	terms := make([]string, 0, len(analysis.BenefitTypes))
	for _, bt := range analysis.BenefitTypes {
		terms = append(terms, strings.ReplaceAll(string(bt), "_", " "))
	}
	return terms
}

func renderCandidates(narrative, tabular []domain.Chunk) string {
	var b strings.Builder
	b.WriteString("NARRATIVE:\n")
	for i, chunk := range narrative {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(chunk.Content, 500))
	}
	b.WriteString("\nTABULAR:\n")
	for i, chunk := range tabular {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(chunk.Content, 500))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractJSONArray trims anything around the outermost JSON array.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
