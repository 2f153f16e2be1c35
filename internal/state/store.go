// Package state persists per-listing tracking rows and answers "what changed"
// between runs. Backed by SQLite so a run can be interrupted at any point and
// resumed without losing change-detection state.
package state

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/statjobs/go-scraper/internal/domain"
)

// Candidate is one listing selected for a detail fetch, with the reason it
// was selected: new, no_fingerprint, updated_at_changed, fingerprint_changed,
// or full.
type Candidate struct {
	ListingID string
	Reason    string
}

// Store manages listing state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			listing_id TEXT PRIMARY KEY,
			last_seen_at TEXT NOT NULL,
			updated_at TEXT,
			detail_fingerprint TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_updated_at ON listings(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertSummary records one sighting of a listing. Inserts with a null
// fingerprint on first discovery; on every later sighting advances
// last_seen_at and records a changed updated_at. The fingerprint is never
// touched here: it is refreshed only by RecordDetailResult. Idempotent.
func (s *Store) UpsertSummary(ctx context.Context, summary domain.ListingSummary, seenAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings(listing_id, last_seen_at, updated_at, detail_fingerprint)
		VALUES(?, ?, ?, NULL)
		ON CONFLICT(listing_id) DO UPDATE SET
			last_seen_at = CASE
				WHEN excluded.last_seen_at > COALESCE(listings.last_seen_at, '')
				THEN excluded.last_seen_at ELSE listings.last_seen_at END,
			updated_at = COALESCE(excluded.updated_at, listings.updated_at)`,
		summary.ListingID, seenAt, nullable(summary.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", summary.ListingID, err)
	}
	return nil
}

// UpsertSummaries applies UpsertSummary to a batch with a common seen-at
// timestamp and returns the number of rows processed.
func (s *Store) UpsertSummaries(ctx context.Context, summaries []domain.ListingSummary, seenAt string) (int, error) {
	count := 0
	for _, summary := range summaries {
		if err := s.UpsertSummary(ctx, summary, seenAt); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// SelectDetailCandidates decides which of the observed listings need a detail
// fetch. Call it BEFORE upserting the same summaries so updated_at comparisons
// see the previous run's values. With full=true every listing is selected.
func (s *Store) SelectDetailCandidates(ctx context.Context, summaries []domain.ListingSummary, full bool) ([]Candidate, error) {
	var out []Candidate
	selected := make(map[string]bool)

	for _, summary := range summaries {
		if selected[summary.ListingID] {
			continue
		}

		if full {
			out = append(out, Candidate{ListingID: summary.ListingID, Reason: "full"})
			selected[summary.ListingID] = true
			continue
		}

		rec, err := s.Get(ctx, summary.ListingID)
		if err != nil {
			return nil, err
		}

		var reason string
		switch {
		case rec == nil:
			reason = "new"
		case rec.DetailFingerprint == "":
			reason = "no_fingerprint"
		case summary.UpdatedAt != "" && summary.UpdatedAt != rec.UpdatedAt:
			reason = "updated_at_changed"
		default:
			continue
		}

		out = append(out, Candidate{ListingID: summary.ListingID, Reason: reason})
		selected[summary.ListingID] = true
	}

	return out, nil
}

// FingerprintChanged reports whether a freshly computed fingerprint differs
// from the stored one. Used when a cheap change signal is available before a
// full reparse. Unknown listings always count as changed.
func (s *Store) FingerprintChanged(ctx context.Context, listingID, fingerprint string) (bool, error) {
	rec, err := s.Get(ctx, listingID)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.DetailFingerprint == "" {
		return true, nil
	}
	return rec.DetailFingerprint != fingerprint, nil
}

// RecordDetailResult persists the fingerprint (and site-reported update time,
// when known) after a successful detail parse. Idempotent: re-applying the
// same result leaves the row unchanged.
func (s *Store) RecordDetailResult(ctx context.Context, listingID, fingerprint, updatedAt string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET detail_fingerprint = ?, updated_at = COALESCE(?, updated_at)
		WHERE listing_id = ?`,
		fingerprint, nullable(updatedAt), listingID,
	)
	if err != nil {
		return fmt.Errorf("record detail result %s: %w", listingID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("record detail result %s: listing not tracked", listingID)
	}
	return nil
}

// Get returns the state record for a listing, or nil when untracked.
func (s *Store) Get(ctx context.Context, listingID string) (*domain.StateRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT listing_id, last_seen_at, COALESCE(updated_at, ''), COALESCE(detail_fingerprint, '')
		FROM listings WHERE listing_id = ?`, listingID)

	var rec domain.StateRecord
	err := row.Scan(&rec.ListingID, &rec.LastSeenAt, &rec.UpdatedAt, &rec.DetailFingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return &rec, nil
}

// Count returns the number of tracked listings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// Fingerprint computes the deterministic hash used for change detection:
// SHA-1 over the whitespace-normalized detail content.
func Fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
