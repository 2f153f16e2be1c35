// Package jobcode extracts job codes ("stillingskode 1408", "kode 5678") from
// detail text and binds salary phrases to them.
//
// Codes are 3-5 digit figures introduced by a code keyword; the digit-length
// bound and the keyword requirement keep 6+ digit salary figures nearby from
// reading as codes. A salary in the same text block as a code binds to that
// code; a lone listing-level salary phrase is shared across all codes that
// lack their own.
package jobcode

import (
	"regexp"
	"sort"
	"strings"

	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/salary"
)

var (
	codeRe      = regexp.MustCompile(`(?i)(?:stillingskode|kode)\s*(\d{3,5})\b`)
	codeTitleRe = regexp.MustCompile(`(?i)(?:stillingskode|kode)\s*(\d{3,5})\s*[-:–]\s*([^\n\r]+)`)
	titleStopRe = regexp.MustCompile(`\s+[-–]\s+|\s*[,;.(]\s*`)
)

// ExtractCodes returns the distinct job codes in the text, sorted, preserving
// leading zeros.
func ExtractCodes(text string) []string {
	seen := make(map[string]bool)
	for _, m := range codeRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = true
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CodeTitle is a job code with its adjacent title when the text carries the
// "kode NNNN – Title" form.
type CodeTitle struct {
	Code  string
	Title string
}

// ExtractCodeTitles returns (code, title) pairs for every distinct code,
// title empty when no title suffix follows the code marker.
func ExtractCodeTitles(text string) []CodeTitle {
	titles := make(map[string]string)
	for _, m := range codeTitleRe.FindAllStringSubmatch(text, -1) {
		// Cut the title at the next delimiter so a trailing salary clause
		// ("kode 1111 – Konsulent – Lønn: kr ...") does not leak into it.
		title := strings.TrimSpace(titleStopRe.Split(m[2], 2)[0])
		if title != "" && titles[m[1]] == "" {
			titles[m[1]] = title
		}
	}

	var pairs []CodeTitle
	for _, code := range ExtractCodes(text) {
		pairs = append(pairs, CodeTitle{Code: code, Title: titles[code]})
	}
	return pairs
}

// ParseBlocks turns the code-bearing text blocks of a detail page plus the
// listing-level salary phrase into JobCodeEntry values.
//
// Binding policy: a block whose own text parses to salary bounds binds those
// bounds to every code in the block (is_shared_salary=false, salary_text =
// the block). Codes left without bounds take the listing-level phrase; when
// more than one such code exists the phrase is shared and every one of those
// entries gets is_shared_salary=true. A phrase with no numeric amount still
// keeps its raw text so agreement references survive.
func ParseBlocks(blocks []string, listingSalaryText string) []domain.JobCodeEntry {
	var entries []domain.JobCodeEntry
	index := make(map[string]int)
	var unbound []int

	for _, block := range blocks {
		pairs := ExtractCodeTitles(block)
		if len(pairs) == 0 {
			continue
		}

		min, max := salary.Parse(block)
		for _, pair := range pairs {
			if i, ok := index[pair.Code]; ok {
				// Same code twice in source text: keep the entry with bounds.
				if entries[i].SalaryMin == nil && min != nil {
					entries[i].SalaryMin, entries[i].SalaryMax = min, max
					entries[i].SalaryText = strings.TrimSpace(block)
					entries[i].IsSharedSalary = false
				}
				if entries[i].Title == "" && pair.Title != "" {
					entries[i].Title = pair.Title
				}
				continue
			}

			entry := domain.JobCodeEntry{Code: pair.Code, Title: pair.Title}
			if min != nil {
				entry.SalaryMin, entry.SalaryMax = min, max
				entry.SalaryText = strings.TrimSpace(block)
			}
			index[pair.Code] = len(entries)
			entries = append(entries, entry)
		}
	}

	phrase := strings.TrimSpace(listingSalaryText)
	if phrase == "" {
		return entries
	}

	for i := range entries {
		if entries[i].SalaryMin == nil {
			unbound = append(unbound, i)
		}
	}

	min, max := salary.Parse(phrase)
	shared := len(unbound) > 1
	for _, i := range unbound {
		entries[i].SalaryMin, entries[i].SalaryMax = min, max
		entries[i].SalaryText = phrase
		entries[i].IsSharedSalary = shared
	}

	// Agreement references embed the code in the salary phrase itself
	// ("... jf. kode 5111"); keep the code with the full phrase as its text.
	for _, pair := range ExtractCodeTitles(phrase) {
		if _, ok := index[pair.Code]; ok {
			continue
		}
		index[pair.Code] = len(entries)
		entries = append(entries, domain.JobCodeEntry{
			Code:       pair.Code,
			Title:      pair.Title,
			SalaryMin:  min,
			SalaryMax:  max,
			SalaryText: phrase,
		})
	}

	return entries
}
