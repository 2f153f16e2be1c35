// Package arbeidsplassen discovers state-sector listings on
// arbeidsplassen.nav.no and selects which detail pages need fetching.
package arbeidsplassen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"time"

	"github.com/statjobs/go-scraper/internal/common/dedup"
	"github.com/statjobs/go-scraper/internal/common/extractor"
	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/identity"
	"github.com/statjobs/go-scraper/internal/module"
	"github.com/statjobs/go-scraper/internal/state"
)

const (
	// Source identifies this site in queue payloads and dedup keys.
	Source = "arbeidsplassen"

	SearchBaseURL = "https://arbeidsplassen.nav.no/stillinger"

	paramSector   = "sector"
	paramOpenOnly = "open"
	paramPage     = "page"
	paramQuery    = "q"

	sectorState = "stat"
)

// SearchParams builds the search URL query. The zero value searches open
// state-sector listings on page 1.
type SearchParams struct {
	Sector   string
	OpenOnly bool
	Page     int
	Query    string
}

// BuildSearchURL constructs a search URL with the state-sector and
// open-only filters applied.
func BuildSearchURL(baseURL string, p SearchParams) string {
	if p.Sector == "" {
		p.Sector = sectorState
	}
	if p.Page < 1 {
		p.Page = 1
	}

	q := url.Values{}
	q.Set(paramSector, p.Sector)
	q.Set(paramOpenOnly, fmt.Sprintf("%t", p.OpenOnly))
	q.Set(paramPage, fmt.Sprintf("%d", p.Page))
	if p.Query != "" {
		q.Set(paramQuery, p.Query)
	}

	return baseURL + "?" + q.Encode()
}

// Config holds crawler settings.
type Config struct {
	BaseURL      string
	Query        string
	MaxPages     int
	RequestDelay time.Duration
	// Full forces every tracked listing through detail fetch regardless
	// of change detection.
	Full bool
}

// Crawler walks search result pages, resolves listing identities, and
// fetches the detail pages the state store selects.
type Crawler struct {
	extractor extractor.Extractor
	store     *state.Store
	dedup     dedup.Checker
	config    Config
}

// NewCrawler creates the crawler. dd may be nil; the Redis fast path is
// optional and the SQLite store remains authoritative.
func NewCrawler(ext extractor.Extractor, store *state.Store, dd dedup.Checker, cfg Config) *Crawler {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SearchBaseURL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 2 * time.Second
	}
	return &Crawler{
		extractor: ext,
		store:     store,
		dedup:     dd,
		config:    cfg,
	}
}

func (c *Crawler) Source() string {
	return Source
}

// Crawl walks the search pages and hands fetched detail pages to the
// handler page by page, so a crash mid-run loses at most one page of work.
func (c *Crawler) Crawl(ctx context.Context, handler module.DetailHandler) (*module.RunMetrics, error) {
	metrics := &module.RunMetrics{}
	seenAt := domain.ISOTime(time.Now())

	for page := 1; page <= c.config.MaxPages; page++ {
		select {
		case <-ctx.Done():
			return metrics, ctx.Err()
		default:
		}

		searchURL := BuildSearchURL(c.config.BaseURL, SearchParams{
			OpenOnly: true,
			Page:     page,
			Query:    c.config.Query,
		})

		log.Printf("[Arbeidsplassen] Crawling page %d/%d", page, c.config.MaxPages)

		listPage, err := c.extractor.ExtractList(ctx, searchURL, page)
		if err != nil {
			log.Printf("[Arbeidsplassen] Error on page %d: %v", page, err)
			continue
		}
		metrics.Pages++

		if len(listPage.Candidates) == 0 {
			log.Printf("[Arbeidsplassen] No listings on page %d, stopping", page)
			break
		}

		summaries := c.resolveSummaries(listPage.Candidates, metrics)
		if err := c.processPage(ctx, summaries, seenAt, handler, metrics); err != nil {
			return metrics, err
		}

		if !listPage.HasNext {
			log.Printf("[Arbeidsplassen] Page %d is the last page", page)
			break
		}

		c.sleep(ctx)
	}

	log.Printf("[Arbeidsplassen] Run done: %d pages, %d discovered, %d selected, %d fetched (%d fetch errors, %d without identity)",
		metrics.Pages, metrics.Discovered, metrics.Selected, metrics.Fetched, metrics.FetchErrs, metrics.NoIdentity)
	return metrics, nil
}

// resolveSummaries derives a stable listing ID for each candidate.
// Candidates with no derivable identity are logged and dropped.
func (c *Crawler) resolveSummaries(candidates []*extractor.Candidate, metrics *module.RunMetrics) []domain.ListingSummary {
	summaries := make([]domain.ListingSummary, 0, len(candidates))
	for _, cand := range candidates {
		id, provenance, err := identity.Resolve(cand.IDCandidates, cand.SourceURL)
		if err != nil {
			if errors.Is(err, domain.ErrNoIdentity) {
				log.Printf("[Arbeidsplassen] Skipping candidate with no identity: %q", cand.SourceURL)
				metrics.NoIdentity++
				continue
			}
			log.Printf("[Arbeidsplassen] Identity error for %q: %v", cand.SourceURL, err)
			metrics.NoIdentity++
			continue
		}

		summaries = append(summaries, domain.ListingSummary{
			ListingID:   id,
			SourceURL:   cand.SourceURL,
			PublishedAt: cand.PublishedAt,
			UpdatedAt:   cand.UpdatedAt,
			Provenance:  provenance,
		})
	}
	metrics.Discovered += len(summaries)
	return summaries
}

// processPage runs change detection for one page of summaries and fetches
// the selected detail pages. Candidate selection reads stored state, so it
// must happen before the summaries are upserted.
func (c *Crawler) processPage(ctx context.Context, summaries []domain.ListingSummary, seenAt string, handler module.DetailHandler, metrics *module.RunMetrics) error {
	// The fast path narrows what selection considers; the full summary
	// set is still upserted so last_seen_at stays fresh for everything.
	filtered := c.fastPathFilter(ctx, summaries)

	candidates, err := c.store.SelectDetailCandidates(ctx, filtered, c.config.Full)
	if err != nil {
		return fmt.Errorf("select detail candidates: %w", err)
	}

	if _, err := c.store.UpsertSummaries(ctx, summaries, seenAt); err != nil {
		return fmt.Errorf("upsert summaries: %w", err)
	}

	metrics.Selected += len(candidates)

	selected := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		selected[cand.ListingID] = true
	}
	// Listings the store had nothing to do for can be remembered in Redis
	// right away. Fetched listings are marked only after the handler
	// succeeds, so a failed fetch stays a candidate on the next run.
	for _, s := range filtered {
		if !selected[s.ListingID] {
			c.markSeen(ctx, s)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	byID := make(map[string]domain.ListingSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ListingID] = s
	}

	var details []*domain.RawDetail
	for _, cand := range candidates {
		// On interrupt, stop fetching but still hand over what was
		// already fetched; unfetched candidates stay candidates.
		if ctx.Err() != nil {
			break
		}

		summary, ok := byID[cand.ListingID]
		if !ok {
			continue
		}

		log.Printf("[Arbeidsplassen] Fetching %s (%s)", cand.ListingID, cand.Reason)

		html, err := c.extractor.FetchDetail(ctx, summary.SourceURL)
		if err != nil {
			log.Printf("[Arbeidsplassen] Error fetching %s: %v", summary.SourceURL, err)
			metrics.FetchErrs++
			continue
		}

		details = append(details, &domain.RawDetail{
			ListingID: cand.ListingID,
			SourceURL: summary.SourceURL,
			HTML:      html,
			Summary:   summary,
			Reason:    cand.Reason,
			FetchedAt: time.Now().UTC(),
		})
		metrics.Fetched++

		c.sleep(ctx)
	}

	if len(details) == 0 {
		return nil
	}
	if err := handler(details); err != nil {
		return err
	}
	for _, d := range details {
		c.markSeen(ctx, d.Summary)
	}
	return nil
}

// markSeen records the summary updated_at in the Redis fast path. No-op
// without a deduplicator or without a summary timestamp to compare against.
func (c *Crawler) markSeen(ctx context.Context, s domain.ListingSummary) {
	if c.dedup == nil || s.UpdatedAt == "" {
		return
	}
	if err := c.dedup.MarkSeen(ctx, Source, s.ListingID, s.UpdatedAt, time.Time{}); err != nil {
		log.Printf("[Arbeidsplassen] Dedup mark failed for %s: %v", s.ListingID, err)
	}
}

// fastPathFilter drops summaries Redis remembers as unchanged. With no
// deduplicator, or during a full run, everything passes through to the
// state store.
func (c *Crawler) fastPathFilter(ctx context.Context, summaries []domain.ListingSummary) []domain.ListingSummary {
	if c.dedup == nil || c.config.Full {
		return summaries
	}

	kept := make([]domain.ListingSummary, 0, len(summaries))
	for _, s := range summaries {
		// Listings without a summary updated_at always pass; only the
		// fingerprint check downstream can clear those.
		if s.UpdatedAt == "" {
			kept = append(kept, s)
			continue
		}

		result, err := c.dedup.CheckListing(ctx, Source, s.ListingID, s.UpdatedAt)
		if err != nil {
			log.Printf("[Arbeidsplassen] Dedup check failed for %s: %v", s.ListingID, err)
			kept = append(kept, s)
			continue
		}

		log.Printf("[Arbeidsplassen] %s: %s", s.ListingID, result)
		if result == dedup.ResultUnchanged {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// sleep waits the configured delay plus jitter so request timing does not
// look mechanical; cancellation cuts the wait short.
func (c *Crawler) sleep(ctx context.Context) {
	timer := time.NewTimer(c.config.RequestDelay + time.Duration(rand.Intn(2000))*time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
