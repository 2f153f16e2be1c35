package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/statjobs/go-scraper/internal/common/cleaner"
	"github.com/statjobs/go-scraper/internal/common/extractor"
	"github.com/statjobs/go-scraper/internal/domain"
	"github.com/statjobs/go-scraper/internal/explode"
	"github.com/statjobs/go-scraper/internal/jobcode"
	"github.com/statjobs/go-scraper/internal/orgmatch"
	"github.com/statjobs/go-scraper/internal/state"
)

// Skip reasons reported on Result.
const (
	SkipUnchanged  = "unchanged_fingerprint"
	SkipNoOrgMatch = "no_org_match"
)

// ProcessorConfig holds the per-run parsing and matching settings.
type ProcessorConfig struct {
	Selectors extractor.DetailSelectors
	// FuzzyThreshold enables fuzzy employer matching when > 0.
	FuzzyThreshold float64
	// SectorFiltered is true when discovery already applied the
	// state-sector filter; title-based matching is only safe then.
	SectorFiltered bool
}

// Processor turns one fetched detail page into exploded output rows,
// updating the listing's tracked fingerprint on the way.
type Processor struct {
	store   *state.Store
	cleaner *cleaner.Cleaner
	matcher *orgmatch.Matcher
	config  ProcessorConfig
}

// NewProcessor creates a processor.
func NewProcessor(store *state.Store, clean *cleaner.Cleaner, matcher *orgmatch.Matcher, cfg ProcessorConfig) *Processor {
	return &Processor{
		store:   store,
		cleaner: clean,
		matcher: matcher,
		config:  cfg,
	}
}

// Result is the outcome of processing one detail page. Skipped is empty
// when rows were produced.
type Result struct {
	Detail    *domain.DetailRecord
	Rows      []*domain.ExplodedRow
	Aggregate *domain.ListingAggregate
	Skipped   string
}

// Process parses, matches and explodes one fetched detail page.
//
// The fingerprint is recorded even when the employer matches none of the
// tracked organizations; otherwise such listings would stay detail
// candidates forever.
func (p *Processor) Process(ctx context.Context, raw *domain.RawDetail) (*Result, error) {
	text := p.cleaner.CleanToText(raw.HTML)
	fingerprint := state.Fingerprint(text)

	changed, err := p.store.FingerprintChanged(ctx, raw.ListingID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprint check for %s: %w", raw.ListingID, err)
	}
	if !changed {
		if err := p.record(ctx, raw, fingerprint, ""); err != nil {
			return nil, err
		}
		return &Result{Skipped: SkipUnchanged}, nil
	}

	fields, err := extractor.ParseDetailHTML(raw.HTML, p.config.Selectors)
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", raw.ListingID, err)
	}

	employerNormalized := orgmatch.Normalize(fields.EmployerRaw)
	match, ok := p.matcher.Match(fields.EmployerRaw, fields.Title, p.config.SectorFiltered, p.config.FuzzyThreshold)
	if !ok {
		if err := p.record(ctx, raw, fingerprint, fields.UpdatedAt); err != nil {
			return nil, err
		}
		return &Result{Skipped: SkipNoOrgMatch}, nil
	}

	detail := fields.Record(raw.ListingID, raw.SourceURL, employerNormalized)
	if detail.PublishedAt == "" {
		detail.PublishedAt = raw.Summary.PublishedAt
	}
	if detail.UpdatedAt == "" {
		detail.UpdatedAt = raw.Summary.UpdatedAt
	}
	detail.Codes = jobcode.ParseBlocks(fields.Blocks, fields.SalaryText)

	scrapedAt := raw.FetchedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	result := &Result{
		Detail:    detail,
		Rows:      explode.Explode(detail, match, scrapedAt),
		Aggregate: explode.Aggregate(detail, match, scrapedAt),
	}

	if err := p.record(ctx, raw, fingerprint, detail.UpdatedAt); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Processor) record(ctx context.Context, raw *domain.RawDetail, fingerprint, updatedAt string) error {
	if updatedAt == "" {
		updatedAt = raw.Summary.UpdatedAt
	}
	if err := p.store.RecordDetailResult(ctx, raw.ListingID, fingerprint, updatedAt); err != nil {
		return fmt.Errorf("record detail result for %s: %w", raw.ListingID, err)
	}
	return nil
}
