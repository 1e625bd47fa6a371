package domain

import "time"

// BenefitType classifies a coverage fact extracted from a plan document.
type BenefitType string

const (
	BenefitPrimaryCare    BenefitType = "primary_care"
	BenefitSpecialist     BenefitType = "specialist"
	BenefitEmergencyRoom  BenefitType = "emergency_room"
	BenefitUrgentCare     BenefitType = "urgent_care"
	BenefitInpatient      BenefitType = "inpatient"
	BenefitOutpatient     BenefitType = "outpatient"
	BenefitPrescription   BenefitType = "prescription_drug"
	BenefitPreventive     BenefitType = "preventive_care"
	BenefitMentalHealth   BenefitType = "mental_health"
	BenefitDeductible     BenefitType = "deductible"
	BenefitCopay          BenefitType = "copay"
	BenefitCoinsurance    BenefitType = "coinsurance"
	BenefitOutOfPocketMax BenefitType = "out_of_pocket_maximum"
	BenefitOther          BenefitType = "other"
)

// BenefitCategory groups benefit types into broad coverage areas.
type BenefitCategory string

const (
	CategoryMedical      BenefitCategory = "medical"
	CategoryPharmacy     BenefitCategory = "pharmacy"
	CategoryDental       BenefitCategory = "dental"
	CategoryVision       BenefitCategory = "vision"
	CategoryMentalHealth BenefitCategory = "mental_health"
	CategoryGeneral      BenefitCategory = "general"
)

// EdgeType names a typed relationship between benefit records.
type EdgeType string

const (
	// EdgeRelatedTo links benefits extracted as explicitly related.
	EdgeRelatedTo EdgeType = "related_to"

	// EdgeSimilarCoverage links benefits whose coverage terms match,
	// created by the relationship analysis pass.
	EdgeSimilarCoverage EdgeType = "similar_coverage"
)

// BenefitRecord is a structured, categorised coverage fact used for graph
// traversal. Records are created during extraction and never mutated
// afterwards; relationship analysis only adds edges.
type BenefitRecord struct {
	ID           string
	TenantID     string
	HealthPlanID string
	DocumentID   string

	Type        BenefitType
	Category    BenefitCategory
	Description string

	// InNetwork and OutOfNetwork hold the raw coverage terms per tier,
	// keyed by the source column header.
	InNetwork    map[string]string
	OutOfNetwork map[string]string

	// Copay is the flat dollar amount, when one was extracted.
	Copay float64

	// Coinsurance is the member share as a fraction in [0,1].
	Coinsurance float64

	// DeductibleApplies is true when the deductible must be met first.
	DeductibleApplies bool

	// PriorAuthRequired is true when prior authorization is needed.
	PriorAuthRequired bool

	// Page and RowIndex locate the record in its source document.
	Page     int
	RowIndex int

	CreatedAt time.Time
}

// BenefitEdge is a typed, weighted relationship between two benefit records.
type BenefitEdge struct {
	FromID   string
	ToID     string
	Type     EdgeType
	Strength float64
}
