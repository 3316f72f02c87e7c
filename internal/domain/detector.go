package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// rateKeywords screen post text before any number extraction. Matching is a
// lower-cased substring test.
var rateKeywords = []string{
	"rate", "rates", "electricity rate", "power rate",
	"samelco rate", "rate update", "new rate", "rate change",
	"₱", "peso", "centavo", "per kwh", "/kwh", "kwh",
}

// ratePatterns are tried in order against the original text. The first one
// whose capture parses as a number wins.
var ratePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)₱(\d+\.?\d*)/kWh`),
	regexp.MustCompile(`(?i)₱(\d+\.?\d*)\s*per\s*kWh`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*peso.*kWh`),
	regexp.MustCompile(`(?i)rate.*₱(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*per\s*kilowatt`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*/kWh`),
}

// DetectRateUpdate reports whether text reads like a tariff announcement and,
// if possible, the per-kWh value it announces.
func DetectRateUpdate(text string) (bool, decimal.NullDecimal) {
	if !containsRateKeyword(strings.ToLower(text)) {
		return false, decimal.NullDecimal{}
	}
	return true, ExtractRate(text)
}

// ExtractRate returns the first value captured by the ordered pattern list.
func ExtractRate(text string) decimal.NullDecimal {
	for _, re := range ratePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		// "12." is a valid capture; the number is 12.
		v, err := decimal.NewFromString(strings.TrimSuffix(m[1], "."))
		if err != nil {
			continue
		}
		return decimal.NullDecimal{Decimal: v, Valid: true}
	}
	return decimal.NullDecimal{}
}

func containsRateKeyword(lower string) bool {
	for _, kw := range rateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
