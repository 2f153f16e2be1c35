package explode

import (
	"testing"
	"time"

	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/orgmatch"
)

func intp(v int) *int { return &v }

var scrapedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func detailFixture() *domain.DetailRecord {
	return &domain.DetailRecord{
		ListingID:          "abc123",
		Title:              "Rådgiver informasjonssikkerhet",
		EmployerRaw:        "Forsvaret",
		EmployerNormalized: "forsvaret",
		SalaryText:         "kr 600 000 – 700 000",
		PublishedAt:        "2025-02-20T00:00:00Z",
		ApplyDeadline:      "2025-03-15T00:00:00Z",
		SourceURL:          "https://arbeidsplassen.nav.no/stillinger/stilling/abc123",
	}
}

func TestExplode_OneRowPerCode(t *testing.T) {
	detail := detailFixture()
	detail.Codes = []domain.JobCodeEntry{
		{Code: "1408", Title: "Førstekonsulent", SalaryMin: intp(550000), SalaryMax: intp(650000), SalaryText: "kr 550 000 – 650 000"},
		{Code: "1364", Title: "Senioringeniør", SalaryMin: intp(700000), SalaryMax: intp(800000), SalaryText: "kr 700 000 – 800 000"},
	}
	match := orgmatch.Match{Tag: "forsvar", Confidence: 1.0, Provenance: "employer_exact"}

	rows := Explode(detail, match, scrapedAt)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].JobCode != "1408" || rows[1].JobCode != "1364" {
		t.Errorf("codes = %s, %s", rows[0].JobCode, rows[1].JobCode)
	}
	if rows[0].JobTitle != "Førstekonsulent" {
		t.Errorf("code title should override listing title, got %q", rows[0].JobTitle)
	}
	for _, r := range rows {
		if r.ListingID != "abc123" || r.EmployerNormalized != "forsvaret" {
			t.Errorf("listing fields not carried: %+v", r)
		}
		if r.MatchedOrgTag != "forsvar" || r.MatchConfidence != 1.0 {
			t.Errorf("match fields not carried: %+v", r)
		}
		if r.ScrapedAt != "2025-03-01T12:00:00Z" {
			t.Errorf("scraped_at = %q", r.ScrapedAt)
		}
	}
	if *rows[1].SalaryMin != 700000 {
		t.Errorf("second row min = %d", *rows[1].SalaryMin)
	}
}

func TestExplode_NoCodesSingleRow(t *testing.T) {
	detail := detailFixture()

	rows := Explode(detail, orgmatch.Match{Tag: "forsvar", Confidence: 1.0}, scrapedAt)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	r := rows[0]
	if r.JobCode != "" {
		t.Errorf("job_code = %q, want empty", r.JobCode)
	}
	if r.JobTitle != "Rådgiver informasjonssikkerhet" {
		t.Errorf("job_title = %q", r.JobTitle)
	}
	if r.SalaryMin == nil || *r.SalaryMin != 600000 || r.SalaryMax == nil || *r.SalaryMax != 700000 {
		t.Errorf("bounds = %v/%v, want 600000/700000", r.SalaryMin, r.SalaryMax)
	}
}

func TestExplode_CodeWithoutTitleKeepsListingTitle(t *testing.T) {
	detail := detailFixture()
	detail.Codes = []domain.JobCodeEntry{{Code: "5111"}}

	rows := Explode(detail, orgmatch.Match{}, scrapedAt)
	if rows[0].JobTitle != "Rådgiver informasjonssikkerhet" {
		t.Errorf("job_title = %q", rows[0].JobTitle)
	}
	if rows[0].SalaryMin != nil {
		t.Errorf("min = %v, want nil", rows[0].SalaryMin)
	}
}

func TestAggregate(t *testing.T) {
	detail := detailFixture()
	detail.Codes = []domain.JobCodeEntry{{Code: "1408"}, {Code: "1364"}}

	agg := Aggregate(detail, orgmatch.Match{Tag: "nsm", Confidence: 0.9}, scrapedAt)
	if agg.CodeCount != 2 {
		t.Errorf("code count = %d", agg.CodeCount)
	}
	if agg.MatchedOrgTag != "nsm" || agg.MatchConfidence != 0.9 {
		t.Errorf("match fields = %q/%v", agg.MatchedOrgTag, agg.MatchConfidence)
	}
	if agg.ScrapedAt != "2025-03-01T12:00:00Z" {
		t.Errorf("scraped_at = %q", agg.ScrapedAt)
	}
}

func TestMeasure(t *testing.T) {
	rows := []*domain.ExplodedRow{
		{JobCode: "1408", SalaryMin: intp(500000), IsSharedSalary: true},
		{JobCode: "1364", SalaryMin: intp(500000), IsSharedSalary: true},
		{JobCode: ""},
	}
	m := Measure(rows)
	if m.Rows != 3 || m.WithCode != 2 || m.WithSalary != 2 || m.Shared != 2 {
		t.Errorf("metrics = %+v", m)
	}
}
