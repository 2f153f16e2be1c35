// Package salary parses free-text salary phrases into annual NOK bounds.
//
// Accepted forms: "kr 600 000 – 750 000", "850.000-950.000",
// "fra kr 725 600 til kr 783 800", "NOK 500 000", and a shorthand low bound
// ("500 - 650 000" reads as 500 000 – 650 000). Qualitative phrases such as
// "etter avtale" yield nil bounds; callers keep the raw text.
//
// A single amount with no range marker is treated as a point value
// (min == max). The site never distinguishes a lone figure from an open-ended
// lower bound, so the symmetric reading is used and the raw text preserved.
package salary

import (
	"regexp"
	"strconv"
	"strings"
)

// Digit groups may use space, NBSP, narrow NBSP, thin space, dot, or comma as
// thousands separators. Bare short groups are allowed so shorthand range lows
// ("500 - 650 000") still parse.
const numPat = `\d{1,3}(?:[ .,\x{00A0}\x{202F}\x{2009}]\d{3})+|\d{4,}|\d{1,3}`

var (
	rangeRe = regexp.MustCompile(
		`(?i)(?:fra\s+)?(?:kr\.?|nok)?\s*(` + numPat + `)(?:\s*[-–]\s*|\s+til\s+)(?:kr\.?|nok)?\s*(` + numPat + `)`)
	currencySingleRe = regexp.MustCompile(`(?i)(?:kr\.?|nok)\s*(` + numPat + `)`)
	bareSingleRe     = regexp.MustCompile(numPat)

	separatorReplacer = strings.NewReplacer(
		" ", "", ".", "", ",", "",
		" ", "", " ", "", " ", "")
)

// Minimum plausible annual figure when no currency marker anchors the number.
// Keeps 3-5 digit job codes and short counts from reading as salaries.
const minBareAmount = 100000

// Parse extracts (min, max) annual NOK from a salary phrase. Both are nil when
// the text carries no usable numeric salary; min <= max always holds.
func Parse(text string) (*int, *int) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	hasCurrency := containsCurrency(text)

	for _, m := range rangeRe.FindAllStringSubmatch(text, -1) {
		lo, err1 := parseAmount(m[1])
		hi, err2 := parseAmount(m[2])
		if err1 == nil && err2 == nil {
			// Shorthand low bound: "500 - 650 000" means 500 000 - 650 000.
			if lo < 1000 && hi >= minBareAmount {
				lo *= 1000
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			// A currency marker inside the match anchors it as a salary;
			// otherwise both bounds must look like annual figures so dates
			// ("2024-05-01") and code pairs never read as ranges.
			if containsCurrency(m[0]) || (lo >= minBareAmount && hi >= minBareAmount) {
				return &lo, &hi
			}
		}
	}

	// Currency-anchored single amount; preferred so a nearby job code is not
	// mistaken for the salary figure.
	if m := currencySingleRe.FindStringSubmatch(text); m != nil {
		if val, err := parseAmount(m[1]); err == nil && val >= 1000 {
			return &val, &val
		}
	}

	if !hasCurrency {
		for _, raw := range bareSingleRe.FindAllString(text, -1) {
			if val, err := parseAmount(raw); err == nil && val >= minBareAmount {
				return &val, &val
			}
		}
	}

	return nil, nil
}

func containsCurrency(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "kr") || strings.Contains(t, "nok")
}

func parseAmount(raw string) (int, error) {
	return strconv.Atoi(separatorReplacer.Replace(raw))
}
