package domain

// Intent categorises what a question is asking for.
type Intent string

const (
	IntentCoverage      Intent = "coverage"
	IntentCost          Intent = "cost"
	IntentNetwork       Intent = "network"
	IntentAuthorization Intent = "authorization"
	IntentClaims        Intent = "claims"
	IntentGeneral       Intent = "general"
)

// Complexity tiers a question for retrieval parameter scaling.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// QueryAnalysis is the transient result of analysing a question. It is
// produced fresh per query and never persisted.
type QueryAnalysis struct {
	Intent       Intent
	Complexity   Complexity
	BenefitTypes []BenefitType
	Keywords     []string
	Entities     []string

	// RequiresCrossReference is true when answering plausibly needs both a
	// narrative rule and a tabular amount for the same benefit.
	RequiresCrossReference bool

	// MemberSpecific is true when the question is about the asker's own
	// coverage ("my copay") rather than the plan in general.
	MemberSpecific bool

	// RequiresCalculation is true when the answer involves arithmetic over
	// amounts rather than a direct lookup.
	RequiresCalculation bool
}

// SourceType identifies which retrieval source produced a result.
type SourceType string

const (
	SourceVector         SourceType = "vector"
	SourceGraph          SourceType = "graph"
	SourceFullText       SourceType = "full_text"
	SourceCrossReference SourceType = "cross_reference"
)

// RetrievalResult is one candidate piece of evidence. Transient; produced
// fresh per query and never stored.
type RetrievalResult struct {
	Content string
	Source  SourceType

	// Score is the raw relevance score from the originating source.
	Score float64

	// Confidence is the derived trust estimate, always in [0,1].
	Confidence float64

	// Provenance for citation.
	DocumentID string
	Page       int
	Section    string

	// BenefitType and Category are set for graph and cross-reference
	// results, and for chunks whose kind maps to a benefit type.
	BenefitType BenefitType
	Category    BenefitCategory
}

// CrossReference connects a narrative passage with a tabular amount for the
// same benefit. Connections are only asserted when supporting fragments
// exist on both sides.
type CrossReference struct {
	// NarrativeFragment is the SPD passage stating the rule.
	NarrativeFragment string

	// TabularFragment is the BPS row stating the amount.
	TabularFragment string

	// ConnectionType names what the two agree on, e.g. "copay".
	ConnectionType string

	// Combined is the merged explanation of rule plus amount.
	Combined string

	Confidence float64

	// Document provenance for each side.
	NarrativeDocumentID string
	TabularDocumentID   string
}

// Citation points a reader back at the evidence behind an answer.
type Citation struct {
	Source     SourceType
	DocumentID string
	Page       int
	Section    string
	Score      float64
}

// Answer is the synthesized response to a question.
type Answer struct {
	Text      string
	Reasoning string

	// Confidence is the overall numeric estimate in [0,1], computed
	// independently of the generation call.
	Confidence float64

	// ConfidenceLabel is the qualitative tier: High, Medium or Low.
	ConfidenceLabel string

	Sources       []Citation
	RelatedTopics []string
	FollowUps     []string

	Intent     Intent
	Complexity Complexity

	// NotReady is true when the tenant has no completed documents. This is
	// a distinct signal from an answer that found no evidence.
	NotReady bool
}

// ConversationContext carries prior-turn context into synthesis.
type ConversationContext struct {
	// PreviousQueries is a rendered summary of earlier questions and
	// answers in the conversation.
	PreviousQueries string
}
