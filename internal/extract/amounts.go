package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyPattern = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d{1,2})?)`)
	percentPattern  = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s?%`)
)

// ParseCurrency extracts the first dollar amount from s.
// It returns the value and true, or 0 and false when no amount is present.
func ParseCurrency(s string) (float64, bool) {
	m := currencyPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParsePercent extracts the first percentage from s as a fraction in [0,1].
// "20%" parses to 0.2. Values above 100% are rejected.
func ParsePercent(s string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v > 100 {
		return 0, false
	}
	return v / 100, true
}

// FindAmounts returns every dollar amount in text, at most limit entries.
func FindAmounts(text string, limit int) []string {
	return capped(currencyPattern.FindAllString(text, -1), limit)
}

// FindPercents returns every percentage in text, at most limit entries.
func FindPercents(text string, limit int) []string {
	return capped(percentPattern.FindAllString(text, -1), limit)
}

func capped(matches []string, limit int) []string {
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// DeductibleApplies reports whether a coverage phrase indicates the
// deductible must be met before the stated cost sharing applies.
func DeductibleApplies(s string) bool {
	l := strings.ToLower(s)
	if strings.Contains(l, "deductible waived") || strings.Contains(l, "no deductible") {
		return false
	}
	return strings.Contains(l, "after deductible") ||
		strings.Contains(l, "deductible applies") ||
		strings.Contains(l, "subject to deductible")
}

// PriorAuthRequired reports whether a coverage phrase indicates prior
// authorization is needed.
func PriorAuthRequired(s string) bool {
	l := strings.ToLower(s)
	if strings.Contains(l, "no prior auth") || strings.Contains(l, "not required") {
		return false
	}
	return strings.Contains(l, "prior auth") ||
		strings.Contains(l, "preauthorization") ||
		strings.Contains(l, "pre-authorization") ||
		strings.Contains(l, "precertification")
}
