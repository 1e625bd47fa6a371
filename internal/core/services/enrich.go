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

// enrichBatchSize is how many chunks are tagged per completion request.
const enrichBatchSize = 10

const enrichPrompt = `You tag text chunks from health insurance plan documents.
For each numbered chunk, extract semantic tags. Respond with a JSON array only:
[{"index": 0, "keywords": ["..."], "entities": ["..."], "topics": ["..."], "confidence": 0.9}]
Keywords are benefit and cost terms, entities are named things (providers,
drug names, plan names), topics are short subject labels. Confidence is your
extraction quality estimate in [0,1]. Skip chunks you cannot tag.`

// Enricher attaches model-derived keywords, entities and topics to extracted
// chunks. The deterministic lexicon tags always survive: enrichment merges on
// top of them and any failure leaves the chunks exactly as extracted.
type Enricher struct {
	llm driven.LLMService
}

// NewEnricher creates an enricher. llm may be nil; Enrich is then a no-op.
func NewEnricher(llm driven.LLMService) *Enricher {
	return &Enricher{llm: llm}
}

type llmChunkTags struct {
	Index      int      `json:"index"`
	Keywords   []string `json:"keywords"`
	Entities   []string `json:"entities"`
	Topics     []string `json:"topics"`
	Confidence float64  `json:"confidence"`
}

// Enrich tags chunks in place, one request per batch. Failed batches keep
// their deterministic tags.
func (e *Enricher) Enrich(ctx context.Context, chunks []domain.Chunk) {
	if e == nil || e.llm == nil || len(chunks) == 0 {
		return
	}

	for start := 0; start < len(chunks); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		e.enrichBatch(ctx, chunks[start:end])
	}
}

func (e *Enricher) enrichBatch(ctx context.Context, batch []domain.Chunk) {
	raw, err := e.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: enrichPrompt},
		{Role: "user", Content: renderEnrichInput(batch)},
	}, driven.ChatOptions{MaxTokens: 1200, Temperature: 0})
	if err != nil {
		logger.Warn("Chunk enrichment failed: %v (lexicon tags stand)", err)
		return
	}

	var parsed []llmChunkTags
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &parsed); err != nil {
		logger.Warn("Chunk enrichment response unparsable: %v", err)
		return
	}

	for _, tags := range parsed {
		if tags.Index < 0 || tags.Index >= len(batch) {
			continue
		}
		chunk := &batch[tags.Index]
		chunk.Keywords = mergeTags(chunk.Keywords, tags.Keywords)
		chunk.Entities = mergeTags(chunk.Entities, tags.Entities)
		chunk.Topics = mergeTags(chunk.Topics, tags.Topics)
		if tags.Confidence > 0 && tags.Confidence <= 1 {
			chunk.ConfidenceScore = tags.Confidence
		}
	}
}

func renderEnrichInput(batch []domain.Chunk) string {
	var b strings.Builder
	for i, chunk := range batch {
		fmt.Fprintf(&b, "%d. %s\n\n", i, truncate(chunk.Content, 400))
	}
	return b.String()
}

// mergeTags appends new tags, deduplicating case-insensitively and keeping
// the existing order first.
func mergeTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, lists := range [][]string{existing, added} {
		for _, tag := range lists {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, tag)
		}
	}
	return merged
}
