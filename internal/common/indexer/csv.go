package indexer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/statjobs/go-scraper/internal/domain"
)

// rowHeader fixes the dataset column order; downstream consumers key on it.
var rowHeader = []string{
	"listing_id", "job_code", "job_title", "employer_normalized",
	"salary_min", "salary_max", "salary_text", "is_shared_salary",
	"published_at", "updated_at", "apply_deadline", "source_url",
	"scraped_at", "matched_org_tag", "match_confidence",
}

var aggHeader = []string{
	"listing_id", "title", "employer_normalized", "matched_org_tag",
	"match_confidence", "code_count", "source_url", "scraped_at",
}

// CSVSink writes exploded rows and aggregates as CSV files in a directory.
// Creating the sink starts a fresh file pair; every batch indexed through
// the same sink appends, so a run that delivers rows page by page still
// ends with the complete set. The mutex serializes concurrent worker
// goroutines writing to the same files.
type CSVSink struct {
	mu       sync.Mutex
	dir      string
	rowsFile string
	aggsFile string
}

// NewCSVSink creates the output directory if needed and truncates any
// files left over from a previous run.
func NewCSVSink(dir string) (*CSVSink, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	s := &CSVSink{
		dir:      dir,
		rowsFile: filepath.Join(dir, "listings_exploded.csv"),
		aggsFile: filepath.Join(dir, "listings.csv"),
	}
	for _, path := range []string{s.rowsFile, s.aggsFile} {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		f.Close()
	}
	return s, nil
}

// BulkIndex appends a batch to the exploded rows file.
func (s *CSVSink) BulkIndex(ctx context.Context, rows []*domain.ExplodedRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.ListingID,
			row.JobCode,
			row.JobTitle,
			row.EmployerNormalized,
			intField(row.SalaryMin),
			intField(row.SalaryMax),
			row.SalaryText,
			strconv.FormatBool(row.IsSharedSalary),
			row.PublishedAt,
			row.UpdatedAt,
			row.ApplyDeadline,
			row.SourceURL,
			row.ScrapedAt,
			row.MatchedOrgTag,
			strconv.FormatFloat(row.MatchConfidence, 'f', -1, 64),
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCSV(s.rowsFile, rowHeader, records)
}

// BulkIndexAggregates appends a batch to the listing-level aggregates file.
func (s *CSVSink) BulkIndexAggregates(ctx context.Context, aggs []*domain.ListingAggregate) error {
	records := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		records = append(records, []string{
			agg.ListingID,
			agg.Title,
			agg.EmployerNormalized,
			agg.MatchedOrgTag,
			strconv.FormatFloat(agg.MatchConfidence, 'f', -1, 64),
			strconv.Itoa(agg.CodeCount),
			agg.SourceURL,
			agg.ScrapedAt,
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCSV(s.aggsFile, aggHeader, records)
}

// RowsPath returns the path of the exploded rows file.
func (s *CSVSink) RowsPath() string {
	return s.rowsFile
}

// appendCSV appends records, writing the header first when the file is
// still empty. Callers hold the sink mutex.
func appendCSV(path string, header []string, records [][]string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write records: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}

	return f.Close()
}

// intField renders a nullable bound; empty cell means no numeric salary.
func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
