package extract

import (
	"strings"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// healthLexicon is the controlled vocabulary of plan terms used for keyword
// tagging and relevance scoring. Matching is case-insensitive substring.
var healthLexicon = []string{
	"deductible",
	"copay",
	"copayment",
	"coinsurance",
	"out-of-pocket",
	"premium",
	"in-network",
	"out-of-network",
	"prior authorization",
	"preauthorization",
	"precertification",
	"referral",
	"primary care",
	"specialist",
	"emergency",
	"urgent care",
	"inpatient",
	"outpatient",
	"hospital",
	"prescription",
	"pharmacy",
	"formulary",
	"generic",
	"brand",
	"preventive",
	"wellness",
	"immunization",
	"mental health",
	"behavioral health",
	"substance abuse",
	"maternity",
	"rehabilitation",
	"durable medical equipment",
	"telehealth",
	"exclusion",
	"limitation",
	"claim",
	"appeal",
	"covered",
	"coverage",
	"benefit",
	"eligibility",
	"enrollment",
	"dependent",
	"network",
	"allowed amount",
	"balance billing",
}

// KeywordLimit caps how many dollar amounts and percentages are added to a
// chunk's keyword list on top of the lexicon matches.
const KeywordLimit = 5

// Keywords returns the lexicon terms found in text plus up to KeywordLimit
// dollar amounts and percentages, in stable order with no duplicates.
func Keywords(text string) []string {
	lower := strings.ToLower(text)

	seen := make(map[string]struct{})
	var out []string
	add := func(kw string) {
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}

	for _, term := range healthLexicon {
		if strings.Contains(lower, term) {
			add(term)
		}
	}
	for _, amt := range FindAmounts(text, KeywordLimit) {
		add(amt)
	}
	for _, pct := range FindPercents(text, KeywordLimit) {
		add(pct)
	}
	return out
}

// Relevance scores how plan-relevant text is: matched lexicon terms over a
// fixed normaliser, clamped to [0,1]. Ten distinct terms saturate the score.
func Relevance(text string) float64 {
	lower := strings.ToLower(text)
	matched := 0
	for _, term := range healthLexicon {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	score := float64(matched) / 10
	if score > 1 {
		score = 1
	}
	return score
}

// benefitTypeTerms maps benefit types to the phrases that identify them.
// Order matters: the first type whose terms match wins.
var benefitTypeTerms = []struct {
	benefitType domain.BenefitType
	terms       []string
}{
	{domain.BenefitEmergencyRoom, []string{"emergency room", "emergency department", " er visit", "emergency care"}},
	{domain.BenefitUrgentCare, []string{"urgent care"}},
	{domain.BenefitPrimaryCare, []string{"primary care", "pcp", "family physician", "general practitioner"}},
	{domain.BenefitSpecialist, []string{"specialist"}},
	{domain.BenefitMentalHealth, []string{"mental health", "behavioral health", "substance abuse", "psychiatr", "counseling"}},
	{domain.BenefitInpatient, []string{"inpatient", "hospital admission", "hospitalization"}},
	{domain.BenefitOutpatient, []string{"outpatient", "ambulatory"}},
	{domain.BenefitPrescription, []string{"prescription", "pharmacy", "formulary", "drug", " rx "}},
	{domain.BenefitPreventive, []string{"preventive", "wellness", "immunization", "screening", "annual physical"}},
	{domain.BenefitOutOfPocketMax, []string{"out-of-pocket max", "out of pocket max", "oop max"}},
	{domain.BenefitDeductible, []string{"deductible"}},
	{domain.BenefitCoinsurance, []string{"coinsurance"}},
	{domain.BenefitCopay, []string{"copay"}},
}

// ClassifyBenefit infers the benefit type and category from free text,
// falling back to BenefitOther / CategoryGeneral.
func ClassifyBenefit(text string) (domain.BenefitType, domain.BenefitCategory) {
	lower := " " + strings.ToLower(text) + " "
	for _, entry := range benefitTypeTerms {
		for _, term := range entry.terms {
			if strings.Contains(lower, term) {
				return entry.benefitType, CategoryFor(entry.benefitType)
			}
		}
	}
	return domain.BenefitOther, domain.CategoryGeneral
}

// BenefitTypesIn returns every benefit type whose terms appear in text, in
// classification order with no duplicates.
func BenefitTypesIn(text string) []domain.BenefitType {
	lower := " " + strings.ToLower(text) + " "
	var out []domain.BenefitType
	for _, entry := range benefitTypeTerms {
		for _, term := range entry.terms {
			if strings.Contains(lower, term) {
				out = append(out, entry.benefitType)
				break
			}
		}
	}
	return out
}

// CategoryFor maps a benefit type to its coverage category.
func CategoryFor(t domain.BenefitType) domain.BenefitCategory {
	switch t {
	case domain.BenefitPrescription:
		return domain.CategoryPharmacy
	case domain.BenefitMentalHealth:
		return domain.CategoryMentalHealth
	case domain.BenefitDeductible, domain.BenefitCopay, domain.BenefitCoinsurance,
		domain.BenefitOutOfPocketMax, domain.BenefitOther:
		return domain.CategoryGeneral
	default:
		return domain.CategoryMedical
	}
}
