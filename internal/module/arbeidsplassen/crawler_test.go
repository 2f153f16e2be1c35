package arbeidsplassen

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/statjobs/go-scraper/internal/common/dedup"
	"github.com/statjobs/go-scraper/internal/common/extractor"
	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/module"
	"github.com/statjobs/go-scraper/internal/state"
)

func TestBuildSearchURL(t *testing.T) {
	u := BuildSearchURL(SearchBaseURL, SearchParams{OpenOnly: true, Page: 1})
	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse %q: %v", u, err)
	}
	q := parsed.Query()
	if q.Get("sector") != "stat" {
		t.Errorf("sector = %q", q.Get("sector"))
	}
	if q.Get("open") != "true" {
		t.Errorf("open = %q", q.Get("open"))
	}
	if q.Get("page") != "1" {
		t.Errorf("page = %q", q.Get("page"))
	}
	if q.Has("q") {
		t.Error("empty query should not be encoded")
	}
}

func TestBuildSearchURL_PageFloorAndQuery(t *testing.T) {
	u := BuildSearchURL(SearchBaseURL, SearchParams{Page: 0, Query: "sikkerhet"})
	q, _ := url.Parse(u)
	if q.Query().Get("page") != "1" {
		t.Errorf("page = %q, want floor at 1", q.Query().Get("page"))
	}
	if q.Query().Get("q") != "sikkerhet" {
		t.Errorf("q = %q", q.Query().Get("q"))
	}
}

func TestResolveSummaries(t *testing.T) {
	c := &Crawler{}
	metrics := &module.RunMetrics{}

	candidates := []*extractor.Candidate{
		{SourceURL: "https://example.org/stilling/0b912280-355f-4bfc-9a51-a0a54b1ac24c"},
		{SourceURL: "https://example.org/job?id=98765", IDCandidates: []string{"native-1"}},
		{SourceURL: ""},
	}

	summaries := c.resolveSummaries(candidates, metrics)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].ListingID != "0b912280-355f-4bfc-9a51-a0a54b1ac24c" || summaries[0].Provenance != "url_uuid" {
		t.Errorf("summary[0] = %+v", summaries[0])
	}
	if summaries[1].ListingID != "native-1" || summaries[1].Provenance != "candidate" {
		t.Errorf("summary[1] = %+v", summaries[1])
	}
	if metrics.NoIdentity != 1 {
		t.Errorf("no-identity count = %d", metrics.NoIdentity)
	}
	if metrics.Discovered != 2 {
		t.Errorf("discovered = %d", metrics.Discovered)
	}
}

// stubExtractor serves canned detail HTML without network access. URLs in
// fail report a fetch error instead.
type stubExtractor struct {
	fetched []string
	fail    map[string]bool
}

func (s *stubExtractor) ExtractList(ctx context.Context, searchURL string, page int) (*extractor.ListPage, error) {
	return &extractor.ListPage{Page: page, URL: searchURL}, nil
}

func (s *stubExtractor) FetchDetail(ctx context.Context, u string) (string, error) {
	s.fetched = append(s.fetched, u)
	if s.fail[u] {
		return "", fmt.Errorf("fetch %s: status 500", u)
	}
	return "<html><body><h1 class=\"job-title\">Stilling</h1></body></html>", nil
}

func (s *stubExtractor) Name() string { return "stub" }

func TestProcessPage_SelectsBeforeUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	stub := &stubExtractor{}
	c := NewCrawler(stub, store, nil, Config{RequestDelay: 1})

	summaries := []domain.ListingSummary{
		{ListingID: "a1", SourceURL: "https://example.org/stilling/a1", UpdatedAt: "2025-03-01T00:00:00Z"},
		{ListingID: "b2", SourceURL: "https://example.org/stilling/b2"},
	}

	var handled []*domain.RawDetail
	handler := func(details []*domain.RawDetail) error {
		handled = append(handled, details...)
		return nil
	}

	metrics := &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-01T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("processPage: %v", err)
	}

	// Both listings are new, so both are selected and fetched.
	if metrics.Selected != 2 || metrics.Fetched != 2 {
		t.Fatalf("selected/fetched = %d/%d", metrics.Selected, metrics.Fetched)
	}
	if len(handled) != 2 {
		t.Fatalf("handler got %d details", len(handled))
	}
	if handled[0].Reason != "new" {
		t.Errorf("reason = %q", handled[0].Reason)
	}
	if !strings.HasSuffix(handled[0].SourceURL, "/a1") {
		t.Errorf("source url = %q", handled[0].SourceURL)
	}

	// Second pass with unchanged summaries selects nothing new; the
	// unchanged a1 stays out, b2 has no fingerprint yet so it re-selects.
	metrics = &module.RunMetrics{}
	handled = nil
	if err := c.processPage(ctx, summaries, "2025-03-02T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("second processPage: %v", err)
	}
	if metrics.Selected != 2 {
		t.Fatalf("second pass selected = %d, want 2 (no fingerprints recorded yet)", metrics.Selected)
	}

	// Record fingerprints; a third unchanged pass selects nothing.
	if err := store.RecordDetailResult(ctx, "a1", "fp-a", "2025-03-01T00:00:00Z"); err != nil {
		t.Fatalf("record a1: %v", err)
	}
	if err := store.RecordDetailResult(ctx, "b2", "fp-b", ""); err != nil {
		t.Fatalf("record b2: %v", err)
	}
	metrics = &module.RunMetrics{}
	handled = nil
	if err := c.processPage(ctx, summaries, "2025-03-03T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("third processPage: %v", err)
	}
	if metrics.Selected != 0 || len(handled) != 0 {
		t.Errorf("third pass selected = %d, handled = %d, want 0/0", metrics.Selected, len(handled))
	}

	// An updated_at change re-selects.
	summaries[0].UpdatedAt = "2025-03-04T00:00:00Z"
	metrics = &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-04T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("fourth processPage: %v", err)
	}
	if metrics.Selected != 1 {
		t.Errorf("fourth pass selected = %d, want 1", metrics.Selected)
	}
}

// memChecker is an in-memory stand-in for the Redis fast path.
type memChecker struct {
	seen  map[string]string
	marks int
}

func newMemChecker() *memChecker {
	return &memChecker{seen: make(map[string]string)}
}

func (m *memChecker) CheckListing(ctx context.Context, source, listingID, updatedAt string) (dedup.CheckResult, error) {
	stored, ok := m.seen[source+":"+listingID]
	if !ok {
		return dedup.ResultNew, nil
	}
	if stored != updatedAt {
		return dedup.ResultUpdated, nil
	}
	return dedup.ResultUnchanged, nil
}

func (m *memChecker) MarkSeen(ctx context.Context, source, listingID, updatedAt string, deadline time.Time) error {
	m.seen[source+":"+listingID] = updatedAt
	m.marks++
	return nil
}

func TestProcessPage_FailedFetchStaysCandidate(t *testing.T) {
	ctx := context.Background()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	const sourceURL = "https://example.org/stilling/a1"
	stub := &stubExtractor{fail: map[string]bool{sourceURL: true}}
	checker := newMemChecker()
	c := NewCrawler(stub, store, checker, Config{RequestDelay: 1})

	summaries := []domain.ListingSummary{
		{ListingID: "a1", SourceURL: sourceURL, UpdatedAt: "2025-03-01T00:00:00Z"},
	}
	handler := func(details []*domain.RawDetail) error { return nil }

	// First pass: the fetch fails, so the listing must not be marked
	// seen in the fast path and the state row keeps no fingerprint.
	metrics := &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-01T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if metrics.Selected != 1 || metrics.FetchErrs != 1 || metrics.Fetched != 0 {
		t.Fatalf("selected/errs/fetched = %d/%d/%d", metrics.Selected, metrics.FetchErrs, metrics.Fetched)
	}
	if len(checker.seen) != 0 {
		t.Fatalf("failed fetch marked seen: %v", checker.seen)
	}

	// Second pass with an unchanged summary still selects it.
	stub.fail = nil
	metrics = &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-02T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("second processPage: %v", err)
	}
	if metrics.Selected != 1 || metrics.Fetched != 1 {
		t.Fatalf("second pass selected/fetched = %d/%d, want 1/1", metrics.Selected, metrics.Fetched)
	}
	if checker.seen["arbeidsplassen:a1"] != "2025-03-01T00:00:00Z" {
		t.Fatalf("successful pass not marked: %v", checker.seen)
	}

	// With the fingerprint recorded, a third pass is skipped by the fast
	// path before selection runs.
	if err := store.RecordDetailResult(ctx, "a1", "fp-a", "2025-03-01T00:00:00Z"); err != nil {
		t.Fatalf("record: %v", err)
	}
	stub.fetched = nil
	metrics = &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-03T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("third processPage: %v", err)
	}
	if metrics.Selected != 0 || len(stub.fetched) != 0 {
		t.Errorf("third pass selected/fetched = %d/%d, want 0/0", metrics.Selected, len(stub.fetched))
	}
}

func TestProcessPage_UnselectedListingWarmsFastPath(t *testing.T) {
	ctx := context.Background()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	checker := newMemChecker()
	c := NewCrawler(&stubExtractor{}, store, checker, Config{RequestDelay: 1})

	// Seed a fully processed listing, then expire it from the fast path.
	summaries := []domain.ListingSummary{
		{ListingID: "a1", SourceURL: "https://example.org/stilling/a1", UpdatedAt: "2025-03-01T00:00:00Z"},
	}
	if _, err := store.UpsertSummaries(ctx, summaries, "2025-03-01T10:00:00Z"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.RecordDetailResult(ctx, "a1", "fp-a", "2025-03-01T00:00:00Z"); err != nil {
		t.Fatalf("record: %v", err)
	}

	handler := func(details []*domain.RawDetail) error { return nil }
	metrics := &module.RunMetrics{}
	if err := c.processPage(ctx, summaries, "2025-03-02T10:00:00Z", handler, metrics); err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if metrics.Selected != 0 {
		t.Fatalf("selected = %d, want 0", metrics.Selected)
	}
	// Nothing to fetch means marking is safe straight away.
	if checker.seen["arbeidsplassen:a1"] != "2025-03-01T00:00:00Z" {
		t.Errorf("unselected listing not remembered: %v", checker.seen)
	}
}

func TestSleepReturnsOnCancel(t *testing.T) {
	c := NewCrawler(&stubExtractor{}, nil, nil, Config{RequestDelay: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	c.sleep(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep ignored cancellation, took %s", elapsed)
	}
}
