package indexer

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/statjobs/go-scraper/internal/domain"
)

// PostgresSink writes exploded rows to PostgreSQL. Rows upsert on
// (listing_id, job_code) so re-runs refresh instead of duplicating.
type PostgresSink struct {
	db        *sql.DB
	rowsTable string
	aggsTable string
}

// NewPostgresSink opens a connection and ensures the output tables exist.
func NewPostgresSink(connStr, rowsTable, aggsTable string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if rowsTable == "" {
		rowsTable = "listings_exploded"
	}
	if aggsTable == "" {
		aggsTable = "listings"
	}

	sink := &PostgresSink{db: db, rowsTable: rowsTable, aggsTable: aggsTable}
	if err := sink.ensureTables(); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}

	return sink, nil
}

func (s *PostgresSink) ensureTables() error {
	// job_code defaults to '' rather than NULL so codeless listings can
	// participate in the composite primary key.
	rows := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			listing_id TEXT NOT NULL,
			job_code TEXT NOT NULL DEFAULT '',
			job_title TEXT,
			employer_normalized TEXT,
			salary_min INTEGER,
			salary_max INTEGER,
			salary_text TEXT,
			is_shared_salary BOOLEAN NOT NULL DEFAULT FALSE,
			published_at TEXT,
			updated_at TEXT,
			apply_deadline TEXT,
			source_url TEXT,
			scraped_at TEXT,
			matched_org_tag TEXT,
			match_confidence DOUBLE PRECISION,
			PRIMARY KEY (listing_id, job_code)
		)
	`, s.rowsTable)
	if _, err := s.db.Exec(rows); err != nil {
		return err
	}

	aggs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			listing_id TEXT PRIMARY KEY,
			title TEXT,
			employer_normalized TEXT,
			matched_org_tag TEXT,
			match_confidence DOUBLE PRECISION,
			code_count INTEGER NOT NULL DEFAULT 0,
			source_url TEXT,
			scraped_at TEXT
		)
	`, s.aggsTable)
	_, err := s.db.Exec(aggs)
	return err
}

// BulkIndex upserts exploded rows inside a single transaction.
func (s *PostgresSink) BulkIndex(ctx context.Context, rows []*domain.ExplodedRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			listing_id, job_code, job_title, employer_normalized,
			salary_min, salary_max, salary_text, is_shared_salary,
			published_at, updated_at, apply_deadline, source_url,
			scraped_at, matched_org_tag, match_confidence
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (listing_id, job_code) DO UPDATE SET
			job_title = EXCLUDED.job_title,
			employer_normalized = EXCLUDED.employer_normalized,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			salary_text = EXCLUDED.salary_text,
			is_shared_salary = EXCLUDED.is_shared_salary,
			published_at = EXCLUDED.published_at,
			updated_at = EXCLUDED.updated_at,
			apply_deadline = EXCLUDED.apply_deadline,
			source_url = EXCLUDED.source_url,
			scraped_at = EXCLUDED.scraped_at,
			matched_org_tag = EXCLUDED.matched_org_tag,
			match_confidence = EXCLUDED.match_confidence
	`, s.rowsTable)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.ListingID, row.JobCode, row.JobTitle, row.EmployerNormalized,
			row.SalaryMin, row.SalaryMax, row.SalaryText, row.IsSharedSalary,
			row.PublishedAt, row.UpdatedAt, row.ApplyDeadline, row.SourceURL,
			row.ScrapedAt, row.MatchedOrgTag, row.MatchConfidence,
		)
		if err != nil {
			return fmt.Errorf("upsert row %s/%s: %w", row.ListingID, row.JobCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// BulkIndexAggregates upserts listing-level aggregate records.
func (s *PostgresSink) BulkIndexAggregates(ctx context.Context, aggs []*domain.ListingAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			listing_id, title, employer_normalized, matched_org_tag,
			match_confidence, code_count, source_url, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (listing_id) DO UPDATE SET
			title = EXCLUDED.title,
			employer_normalized = EXCLUDED.employer_normalized,
			matched_org_tag = EXCLUDED.matched_org_tag,
			match_confidence = EXCLUDED.match_confidence,
			code_count = EXCLUDED.code_count,
			source_url = EXCLUDED.source_url,
			scraped_at = EXCLUDED.scraped_at
	`, s.aggsTable)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, agg := range aggs {
		_, err := stmt.ExecContext(ctx,
			agg.ListingID, agg.Title, agg.EmployerNormalized, agg.MatchedOrgTag,
			agg.MatchConfidence, agg.CodeCount, agg.SourceURL, agg.ScrapedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert aggregate %s: %w", agg.ListingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
