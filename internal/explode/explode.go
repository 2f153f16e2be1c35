// Package explode flattens a parsed detail record into one output row per
// (listing_id, job_code) pair.
package explode

import (
	"time"

	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/orgmatch"
	"github.com/statjobs/go-scraper/internal/salary"
)

// Explode returns one row per job code on the detail record. A listing with
// no codes still yields a single row with an empty job_code so it is not
// silently dropped; that row takes its bounds from the listing-level salary
// phrase when one parses.
func Explode(detail *domain.DetailRecord, match orgmatch.Match, scrapedAt time.Time) []*domain.ExplodedRow {
	base := domain.ExplodedRow{
		ListingID:          detail.ListingID,
		JobTitle:           detail.Title,
		EmployerNormalized: detail.EmployerNormalized,
		PublishedAt:        detail.PublishedAt,
		UpdatedAt:          detail.UpdatedAt,
		ApplyDeadline:      detail.ApplyDeadline,
		SourceURL:          detail.SourceURL,
		ScrapedAt:          domain.ISOTime(scrapedAt),
		MatchedOrgTag:      match.Tag,
		MatchConfidence:    match.Confidence,
	}

	if len(detail.Codes) == 0 {
		row := base
		row.SalaryText = detail.SalaryText
		row.SalaryMin, row.SalaryMax = salary.Parse(detail.SalaryText)
		return []*domain.ExplodedRow{&row}
	}

	rows := make([]*domain.ExplodedRow, 0, len(detail.Codes))
	for _, code := range detail.Codes {
		row := base
		row.JobCode = code.Code
		if code.Title != "" {
			row.JobTitle = code.Title
		}
		row.SalaryMin = code.SalaryMin
		row.SalaryMax = code.SalaryMax
		row.SalaryText = code.SalaryText
		row.IsSharedSalary = code.IsSharedSalary
		rows = append(rows, &row)
	}
	return rows
}

// Aggregate builds the listing-level companion record for the exploded set.
func Aggregate(detail *domain.DetailRecord, match orgmatch.Match, scrapedAt time.Time) *domain.ListingAggregate {
	return &domain.ListingAggregate{
		ListingID:          detail.ListingID,
		Title:              detail.Title,
		EmployerNormalized: detail.EmployerNormalized,
		MatchedOrgTag:      match.Tag,
		MatchConfidence:    match.Confidence,
		CodeCount:          len(detail.Codes),
		SourceURL:          detail.SourceURL,
		ScrapedAt:          domain.ISOTime(scrapedAt),
	}
}

// Metrics summarizes row-level coverage for a batch of exploded rows.
type Metrics struct {
	Rows       int
	WithCode   int
	WithSalary int
	Shared     int
}

// Measure counts code and salary coverage across rows.
func Measure(rows []*domain.ExplodedRow) Metrics {
	var m Metrics
	m.Rows = len(rows)
	for _, r := range rows {
		if r.JobCode != "" {
			m.WithCode++
		}
		if r.SalaryMin != nil {
			m.WithSalary++
		}
		if r.IsSharedSalary {
			m.Shared++
		}
	}
	return m
}
