// Package extractor fetches and parses search/list and detail pages.
package extractor

import "context"

// Candidate is one raw result from a list page, before identity resolution.
// IDCandidates holds any site-native IDs found on the card, in order of
// preference.
type Candidate struct {
	SourceURL    string
	IDCandidates []string
	PublishedAt  string
	UpdatedAt    string
}

// ListPage is one fetched search results page.
type ListPage struct {
	Page       int
	URL        string
	Candidates []*Candidate
	// HasNext reports whether the page linked to a further page.
	HasNext bool
}

// Extractor fetches list pages and detail pages from a source site.
type Extractor interface {
	// ExtractList fetches one search results page.
	ExtractList(ctx context.Context, searchURL string, page int) (*ListPage, error)

	// FetchDetail fetches a detail page and returns its raw HTML.
	FetchDetail(ctx context.Context, url string) (string, error)

	// Name identifies the extractor in logs.
	Name() string
}

// Config holds common extractor settings.
type Config struct {
	UserAgent    string
	ProxyURL     string
	MaxRetries   int
	RequestDelay int // milliseconds
}
