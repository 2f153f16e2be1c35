package module

import (
	"context"

	"github.com/statjobs/go-scraper/internal/domain"
)

// DetailHandler receives the fetched detail pages of one results page.
type DetailHandler func(details []*domain.RawDetail) error

// RunMetrics summarizes one discovery run.
type RunMetrics struct {
	Pages      int
	Discovered int
	NoIdentity int
	Selected   int
	Fetched    int
	FetchErrs  int
}

// Crawler is the common interface for listing-source crawlers.
type Crawler interface {
	// Crawl walks the source's result pages and hands fetched detail
	// pages to the handler page by page.
	Crawl(ctx context.Context, handler DetailHandler) (*RunMetrics, error)
	// Source returns the source identifier.
	Source() string
}
