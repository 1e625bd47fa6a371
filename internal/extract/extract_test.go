package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected domain.DocumentType
		wantErr  bool
	}{
		{name: "pdf is narrative", filename: "plan-spd.pdf", expected: domain.DocTypeNarrative},
		{name: "uppercase extension", filename: "PLAN.PDF", expected: domain.DocTypeNarrative},
		{name: "xlsx is tabular", filename: "benefits.xlsx", expected: domain.DocTypeTabular},
		{name: "xls is tabular", filename: "benefits.xls", expected: domain.DocTypeTabular},
		{name: "csv is tabular", filename: "grid.csv", expected: domain.DocTypeTabular},
		{name: "txt is other", filename: "notes.txt", expected: domain.DocTypeOther},
		{name: "docx unsupported", filename: "plan.docx", wantErr: true},
		{name: "no extension", filename: "plan", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := DetectType(tc.filename)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.False(t, Supported("a.exe"))
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{name: "plain", input: "$25", expected: 25, ok: true},
		{name: "with cents", input: "$25.50 copay", expected: 25.50, ok: true},
		{name: "thousands separator", input: "Deductible: $1,500.00", expected: 1500, ok: true},
		{name: "space after sign", input: "$ 300", expected: 300, ok: true},
		{name: "no amount", input: "not covered", ok: false},
		{name: "bare number", input: "1500", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := ParseCurrency(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.expected, v, 0.001)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		ok       bool
	}{
		{name: "whole", input: "20% coinsurance", expected: 0.20, ok: true},
		{name: "fractional", input: "12.5%", expected: 0.125, ok: true},
		{name: "space before sign", input: "20 %", expected: 0.20, ok: true},
		{name: "no percent", input: "$20", ok: false},
		{name: "over 100 rejected", input: "250%", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := ParsePercent(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.expected, v, 0.0001)
			}
		})
	}
}

func TestFindAmountsCapped(t *testing.T) {
	text := "$1 $2 $3 $4 $5 $6 $7"
	assert.Len(t, FindAmounts(text, 5), 5)
	assert.Len(t, FindAmounts(text, -1), 7)
}

func TestDeductibleApplies(t *testing.T) {
	assert.True(t, DeductibleApplies("20% after deductible"))
	assert.True(t, DeductibleApplies("Subject to deductible"))
	assert.False(t, DeductibleApplies("deductible waived"))
	assert.False(t, DeductibleApplies("$25 copay"))
}

func TestPriorAuthRequired(t *testing.T) {
	assert.True(t, PriorAuthRequired("Prior authorization required"))
	assert.True(t, PriorAuthRequired("precertification needed"))
	assert.False(t, PriorAuthRequired("no prior auth needed"))
	assert.False(t, PriorAuthRequired("covered in full"))
}

func TestKeywords(t *testing.T) {
	text := "The deductible is $1,500 and coinsurance is 20% for specialist visits."
	kws := Keywords(text)

	assert.Contains(t, kws, "deductible")
	assert.Contains(t, kws, "coinsurance")
	assert.Contains(t, kws, "specialist")
	assert.Contains(t, kws, "$1,500")
	assert.Contains(t, kws, "20%")
}

func TestKeywordsNoDuplicates(t *testing.T) {
	kws := Keywords("deductible deductible deductible")
	assert.Equal(t, []string{"deductible"}, kws)
}

func TestRelevance(t *testing.T) {
	assert.Zero(t, Relevance("the quick brown fox"))

	partial := Relevance("the deductible and copay")
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)

	dense := "deductible copay coinsurance out-of-pocket premium in-network " +
		"out-of-network referral specialist emergency urgent care inpatient"
	assert.Equal(t, 1.0, Relevance(dense))
}

func TestBenefitTypesIn(t *testing.T) {
	types := BenefitTypesIn("Does my primary care copay count toward the deductible?")
	assert.Contains(t, types, domain.BenefitPrimaryCare)
	assert.Contains(t, types, domain.BenefitCopay)
	assert.Contains(t, types, domain.BenefitDeductible)
	assert.Empty(t, BenefitTypesIn("hello world"))
}

func TestClassifyBenefit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected domain.BenefitType
		category domain.BenefitCategory
	}{
		{name: "er before specialist", input: "Emergency Room specialist referral", expected: domain.BenefitEmergencyRoom, category: domain.CategoryMedical},
		{name: "primary care", input: "Primary Care Office Visit", expected: domain.BenefitPrimaryCare, category: domain.CategoryMedical},
		{name: "pharmacy", input: "Prescription Drugs - Generic", expected: domain.BenefitPrescription, category: domain.CategoryPharmacy},
		{name: "mental health", input: "Behavioral Health outpatient", expected: domain.BenefitMentalHealth, category: domain.CategoryMentalHealth},
		{name: "oop max", input: "Out-of-Pocket Maximum (Individual)", expected: domain.BenefitOutOfPocketMax, category: domain.CategoryGeneral},
		{name: "fallback", input: "Chiropractic care", expected: domain.BenefitOther, category: domain.CategoryGeneral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bt, cat := ClassifyBenefit(tc.input)
			assert.Equal(t, tc.expected, bt)
			assert.Equal(t, tc.category, cat)
		})
	}
}
