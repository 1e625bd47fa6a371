package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// Confidence bases by source. Cross-references are corroborated by two
// documents, graph records are structured extractions, vectors are fuzzy
// matches, full text is keyword overlap. The ordering is what matters.
const (
	confCrossReference = 0.95
	confGraph          = 0.9
	confVector         = 0.7
	confFullText       = 0.6
)

// maxFusedResults caps the merged result set handed to synthesis.
const maxFusedResults = 10

// defaultSourceTimeout bounds each retrieval source independently.
const defaultSourceTimeout = 10 * time.Second

// fingerprintPrefix is how much normalised content feeds the dedupe hash.
const fingerprintPrefix = 100

// RetrievalEngine fans a question out to every available evidence source
// and fuses the results into one confidence-ranked list. Sources fail
// independently; the engine only comes back empty when all of them do.
type RetrievalEngine struct {
	docStore  driven.DocumentStore
	vector    driven.VectorIndex
	embedding driven.EmbeddingService
	graph     driven.GraphStore
	crossRef  *CrossReferencer

	sourceTimeout time.Duration
}

// NewRetrievalEngine creates a retrieval engine. vector, embedding, graph
// and crossRef may each be nil; the corresponding source is skipped.
func NewRetrievalEngine(
	docStore driven.DocumentStore,
	vector driven.VectorIndex,
	embedding driven.EmbeddingService,
	graph driven.GraphStore,
	crossRef *CrossReferencer,
) *RetrievalEngine {
	return &RetrievalEngine{
		docStore:      docStore,
		vector:        vector,
		embedding:     embedding,
		graph:         graph,
		crossRef:      crossRef,
		sourceTimeout: defaultSourceTimeout,
	}
}

// Retrieve gathers evidence for the question from all sources in parallel
// and returns the fused top results, best first.
func (e *RetrievalEngine) Retrieve(ctx context.Context, tenantID, healthPlanID, question string, analysis *domain.QueryAnalysis) []domain.RetrievalResult {
	logger.Section("Retrieval Fusion")

	type sourceRun struct {
		name    domain.SourceType
		results []domain.RetrievalResult
		err     error
	}

	runs := []*sourceRun{
		{name: domain.SourceVector},
		{name: domain.SourceGraph},
		{name: domain.SourceFullText},
		{name: domain.SourceCrossReference},
	}

	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(run *sourceRun) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
			defer cancel()

			switch run.name {
			case domain.SourceVector:
				run.results, run.err = e.vectorSource(sctx, tenantID, healthPlanID, question, analysis)
			case domain.SourceGraph:
				run.results, run.err = e.graphSource(sctx, tenantID, healthPlanID, analysis)
			case domain.SourceFullText:
				run.results, run.err = e.fullTextSource(sctx, tenantID, healthPlanID, question, analysis)
			case domain.SourceCrossReference:
				run.results, run.err = e.crossRefSource(sctx, tenantID, healthPlanID, analysis)
			}
		}(run)
	}
	wg.Wait()

	var fused []domain.RetrievalResult
	for _, run := range runs {
		if run.err != nil {
			if sourceUnavailable(run.err) {
				logger.Debug("Retrieval source %s not configured, skipped", run.name)
				continue
			}
			// One source failing must not sink the query.
			logger.Warn("Retrieval source %s failed: %v", run.name, run.err)
			continue
		}
		logger.Debug("Retrieval source %s: %d results", run.name, len(run.results))
		fused = append(fused, run.results...)
	}

	for i := range fused {
		fused[i].Confidence = scoreConfidence(fused[i], analysis)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Confidence != fused[j].Confidence {
			return fused[i].Confidence > fused[j].Confidence
		}
		return fused[i].Score > fused[j].Score
	})
	// Dedupe after ranking so the strongest duplicate survives.
	fused = dedupe(fused)
	if len(fused) > maxFusedResults {
		fused = fused[:maxFusedResults]
	}

	logger.Info("Retrieval fusion: %d results after merge", len(fused))
	return fused
}

// sourceUnavailable reports whether a source error only means its backing
// service is not configured. Absent services are an expected deployment
// shape, not a failure.
func sourceUnavailable(err error) bool {
	return errors.Is(err, domain.ErrVectorIndexUnavailable) ||
		errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrGraphUnavailable)
}

// vectorSource embeds the question and queries the similarity index.
// Complex questions search wider and accept weaker matches.
func (e *RetrievalEngine) vectorSource(ctx context.Context, tenantID, healthPlanID, question string, analysis *domain.QueryAnalysis) ([]domain.RetrievalResult, error) {
	if e.embedding == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if e.vector == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	topK, minScore := 10, 0.7
	if analysis.Complexity == domain.ComplexityComplex {
		topK, minScore = 15, 0.6
	}

	vec, err := e.embedding.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := e.vector.Query(ctx, vec, driven.VectorFilter{
		TenantID:     tenantID,
		HealthPlanID: healthPlanID,
	}, topK, minScore)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(hits))
	for i, hit := range hits {
		results[i] = domain.RetrievalResult{
			Content:    hit.Content,
			Source:     domain.SourceVector,
			Score:      hit.Score,
			DocumentID: hit.DocumentID,
			Page:       hit.Page,
			Section:    hit.Section,
		}
	}
	return results, nil
}

// graphSource traverses benefit relationships seeded from the analysed
// benefit types. Complex questions follow more hops.
func (e *RetrievalEngine) graphSource(ctx context.Context, tenantID, healthPlanID string, analysis *domain.QueryAnalysis) ([]domain.RetrievalResult, error) {
	if len(analysis.BenefitTypes) == 0 {
		return nil, nil
	}
	if e.graph == nil {
		return nil, domain.ErrGraphUnavailable
	}

	maxHops := 1
	if analysis.Complexity == domain.ComplexityComplex {
		maxHops = 3
	}

	hits, err := e.graph.Traverse(ctx, tenantID, healthPlanID, analysis.BenefitTypes, maxHops)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(hits))
	for i, hit := range hits {
		results[i] = domain.RetrievalResult{
			Content:     renderBenefit(hit.Record),
			Source:      domain.SourceGraph,
			Score:       hit.Strength,
			DocumentID:  hit.Record.DocumentID,
			Page:        hit.Record.Page,
			BenefitType: hit.Record.Type,
			Category:    hit.Record.Category,
		}
	}
	return results, nil
}

// fullTextSource keyword-searches chunks of completed documents.
func (e *RetrievalEngine) fullTextSource(ctx context.Context, tenantID, healthPlanID, question string, analysis *domain.QueryAnalysis) ([]domain.RetrievalResult, error) {
	terms := analysis.Keywords
	if len(terms) == 0 {
		terms = strings.Fields(strings.ToLower(question))
	}

	chunks, err := e.docStore.SearchChunks(ctx, driven.ChunkQuery{
		TenantID:     tenantID,
		HealthPlanID: healthPlanID,
		Terms:        terms,
		Limit:        maxFusedResults * 2,
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(chunks))
	for i, chunk := range chunks {
		results[i] = domain.RetrievalResult{
			Content:    chunk.Content,
			Source:     domain.SourceFullText,
			Score:      chunk.RelevanceScore,
			DocumentID: chunk.DocumentID,
			Page:       chunk.Page,
			Section:    chunk.Section,
		}
	}
	return results, nil
}

// crossRefSource resolves rule-to-amount connections when the analysis
// asked for them.
func (e *RetrievalEngine) crossRefSource(ctx context.Context, tenantID, healthPlanID string, analysis *domain.QueryAnalysis) ([]domain.RetrievalResult, error) {
	if e.crossRef == nil || !analysis.RequiresCrossReference {
		return nil, nil
	}

	refs, err := e.crossRef.Resolve(ctx, tenantID, healthPlanID, analysis)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(refs))
	for i, ref := range refs {
		benefitType, category := extract.ClassifyBenefit(ref.Combined)
		results[i] = domain.RetrievalResult{
			Content:     ref.Combined,
			Source:      domain.SourceCrossReference,
			Score:       ref.Confidence,
			DocumentID:  ref.TabularDocumentID,
			BenefitType: benefitType,
			Category:    category,
		}
	}
	return results, nil
}

// scoreConfidence derives the trust estimate for one result: source base,
// adjusted for question complexity and benefit-type agreement, clamped.
func scoreConfidence(r domain.RetrievalResult, analysis *domain.QueryAnalysis) float64 {
	var conf float64
	switch r.Source {
	case domain.SourceCrossReference:
		conf = confCrossReference
	case domain.SourceGraph:
		conf = confGraph
	case domain.SourceVector:
		conf = confVector
	default:
		conf = confFullText
	}

	switch analysis.Complexity {
	case domain.ComplexitySimple:
		conf += 0.1
	case domain.ComplexityComplex:
		conf -= 0.1
	}

	if r.BenefitType != "" {
		for _, bt := range analysis.BenefitTypes {
			if bt == r.BenefitType {
				conf += 0.1
				break
			}
		}
	}

	return clamp01(conf)
}

// dedupe drops results whose normalised content prefix matches an earlier
// one. First occurrence wins.
func dedupe(results []domain.RetrievalResult) []domain.RetrievalResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		fp := fingerprint(r.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, r)
	}
	return out
}

func fingerprint(content string) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	if len(normalised) > fingerprintPrefix {
		normalised = normalised[:fingerprintPrefix]
	}
	return extract.HashContent(normalised)
}

// renderBenefit flattens a benefit record into evidence text.
func renderBenefit(rec domain.BenefitRecord) string {
	var b strings.Builder
	b.WriteString(rec.Description)
	for _, tier := range rec.InNetwork {
		b.WriteString(" | in-network: " + tier)
	}
	for _, tier := range rec.OutOfNetwork {
		b.WriteString(" | out-of-network: " + tier)
	}
	if rec.PriorAuthRequired {
		b.WriteString(" | prior authorization required")
	}
	if rec.DeductibleApplies {
		b.WriteString(" | deductible applies")
	}
	return b.String()
}
