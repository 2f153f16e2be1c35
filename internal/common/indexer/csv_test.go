package indexer

import (
	"context"
	"encoding/csv"
	"os"
	"reflect"
	"testing"

	"github.com/statjobs/go-scraper/internal/domain"
)

func intp(v int) *int { return &v }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestCSVSink_ColumnOrder(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	rows := []*domain.ExplodedRow{{
		ListingID:          "abc123",
		JobCode:            "1408",
		JobTitle:           "Førstekonsulent",
		EmployerNormalized: "forsvaret",
		SalaryMin:          intp(550000),
		SalaryMax:          intp(650000),
		SalaryText:         "kr 550 000 – 650 000",
		IsSharedSalary:     true,
		PublishedAt:        "2025-02-20T00:00:00Z",
		ApplyDeadline:      "2025-03-15T00:00:00Z",
		SourceURL:          "https://example.org/stilling/abc123",
		ScrapedAt:          "2025-03-01T12:00:00Z",
		MatchedOrgTag:      "forsvar",
		MatchConfidence:    1,
	}}
	if err := sink.BulkIndex(context.Background(), rows); err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}

	records := readCSV(t, sink.RowsPath())
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1 row", len(records))
	}
	if !reflect.DeepEqual(records[0], rowHeader) {
		t.Errorf("header = %v", records[0])
	}
	want := []string{
		"abc123", "1408", "Førstekonsulent", "forsvaret",
		"550000", "650000", "kr 550 000 – 650 000", "true",
		"2025-02-20T00:00:00Z", "", "2025-03-15T00:00:00Z",
		"https://example.org/stilling/abc123", "2025-03-01T12:00:00Z",
		"forsvar", "1",
	}
	if !reflect.DeepEqual(records[1], want) {
		t.Errorf("row = %v, want %v", records[1], want)
	}
}

func TestCSVSink_KeepsEarlierBatches(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	ctx := context.Background()

	// Rows arrive once per crawled page; every batch must survive.
	if err := sink.BulkIndex(ctx, []*domain.ExplodedRow{{ListingID: "L1", JobCode: "1408"}}); err != nil {
		t.Fatalf("first BulkIndex: %v", err)
	}
	if err := sink.BulkIndex(ctx, []*domain.ExplodedRow{{ListingID: "L2", JobCode: "1364"}}); err != nil {
		t.Fatalf("second BulkIndex: %v", err)
	}

	records := readCSV(t, sink.RowsPath())
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if records[1][0] != "L1" || records[2][0] != "L2" {
		t.Errorf("rows = %q, %q; want L1 then L2", records[1][0], records[2][0])
	}
	if !reflect.DeepEqual(records[0], rowHeader) {
		t.Errorf("header = %v", records[0])
	}
}

func TestCSVSink_FreshSinkTruncatesOldFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := sink.BulkIndex(ctx, []*domain.ExplodedRow{{ListingID: "old"}}); err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}

	// A new sink over the same directory starts over.
	sink2, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("second NewCSVSink: %v", err)
	}
	if err := sink2.BulkIndex(ctx, []*domain.ExplodedRow{{ListingID: "new"}}); err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}

	records := readCSV(t, sink2.RowsPath())
	if len(records) != 2 || records[1][0] != "new" {
		t.Fatalf("records = %v, want header + new only", records)
	}
}

func TestCSVSink_NilBoundsEmptyCells(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	rows := []*domain.ExplodedRow{{ListingID: "x1", SalaryText: "etter avtale"}}
	if err := sink.BulkIndex(context.Background(), rows); err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}

	records := readCSV(t, sink.RowsPath())
	if records[1][4] != "" || records[1][5] != "" {
		t.Errorf("nil bounds should be empty cells, got %q/%q", records[1][4], records[1][5])
	}
	if records[1][6] != "etter avtale" {
		t.Errorf("salary_text = %q", records[1][6])
	}
}

func TestCSVSink_Aggregates(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVSink(dir)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	aggs := []*domain.ListingAggregate{{
		ListingID:          "abc123",
		Title:              "Rådgiver",
		EmployerNormalized: "forsvaret",
		MatchedOrgTag:      "forsvar",
		MatchConfidence:    0.85,
		CodeCount:          2,
		SourceURL:          "https://example.org/stilling/abc123",
		ScrapedAt:          "2025-03-01T12:00:00Z",
	}}
	if err := sink.BulkIndexAggregates(context.Background(), aggs); err != nil {
		t.Fatalf("BulkIndexAggregates: %v", err)
	}

	records := readCSV(t, sink.aggsFile)
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[1][4] != "0.85" || records[1][5] != "2" {
		t.Errorf("confidence/code_count = %q/%q", records[1][4], records[1][5])
	}
}
