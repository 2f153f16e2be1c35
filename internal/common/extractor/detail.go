package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/statjobs/go-scraper/internal/domain"
)

// DetailFields is the raw field set parsed from a detail page. Employer
// normalization and job-code parsing happen downstream; this layer only
// locates text.
type DetailFields struct {
	Title          string
	EmployerRaw    string
	Locations      []string
	EmploymentType string
	Extent         string
	SalaryText     string
	PublishedAt    string
	UpdatedAt      string
	ApplyDeadline  string
	// Blocks are the text blocks that may carry job codes, one per
	// matched element.
	Blocks []string
}

// ParseDetailHTML extracts the detail fields from a detail page.
func ParseDetailHTML(html string, sel DetailSelectors) (*DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	fields := &DetailFields{
		Title:          firstText(doc, sel.Title),
		EmployerRaw:    firstText(doc, sel.Employer),
		Locations:      splitLocations(firstText(doc, sel.Locations)),
		EmploymentType: firstText(doc, sel.EmploymentType),
		Extent:         firstText(doc, sel.Extent),
		SalaryText:     firstText(doc, sel.SalaryText),
		PublishedAt:    timeValue(doc, sel.PublishedAt),
		UpdatedAt:      timeValue(doc, sel.UpdatedAt),
		ApplyDeadline:  timeValue(doc, sel.ApplyDeadline),
	}

	if sel.JobCodeBlocks != "" {
		doc.Find(sel.JobCodeBlocks).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				fields.Blocks = append(fields.Blocks, text)
			}
		})
	}

	return fields, nil
}

// Record assembles a DetailRecord from parsed fields. Job codes are filled
// in by the caller after parsing the blocks.
func (f *DetailFields) Record(listingID, sourceURL, employerNormalized string) *domain.DetailRecord {
	return &domain.DetailRecord{
		ListingID:          listingID,
		Title:              f.Title,
		EmployerRaw:        f.EmployerRaw,
		EmployerNormalized: employerNormalized,
		Locations:          f.Locations,
		EmploymentType:     f.EmploymentType,
		Extent:             f.Extent,
		SalaryText:         f.SalaryText,
		PublishedAt:        f.PublishedAt,
		UpdatedAt:          f.UpdatedAt,
		ApplyDeadline:      f.ApplyDeadline,
		SourceURL:          sourceURL,
	}
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}

// timeValue prefers a machine-readable datetime attribute over element text.
func timeValue(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	node := doc.Find(selector).First()
	if v, ok := node.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(node.Text())
}

func splitLocations(text string) []string {
	if text == "" {
		return nil
	}
	var locations []string
	for _, part := range strings.Split(strings.ReplaceAll(text, "/", ","), ",") {
		if p := strings.TrimSpace(part); p != "" {
			locations = append(locations, p)
		}
	}
	return locations
}
