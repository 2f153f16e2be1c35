package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyExtractor implements Extractor using Colly for HTML scraping.
type CollyExtractor struct {
	collector *colly.Collector
	config    Config
	source    string
	selectors ListSelectors
}

// NewCollyExtractor creates a Colly-based extractor for the given source.
func NewCollyExtractor(source string, selectors ListSelectors, config Config) *CollyExtractor {
	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
	)

	if config.RequestDelay > 0 {
		c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Delay:       time.Duration(config.RequestDelay) * time.Millisecond,
			RandomDelay: time.Duration(config.RequestDelay/2) * time.Millisecond,
		})
	}

	if config.ProxyURL != "" {
		c.SetProxy(config.ProxyURL)
	}

	return &CollyExtractor{
		collector: c,
		config:    config,
		source:    source,
		selectors: selectors,
	}
}

func (e *CollyExtractor) Name() string {
	return fmt.Sprintf("colly_%s", e.source)
}

// ExtractList fetches one search results page and returns the candidates on
// it. Relative detail links are resolved against the page URL.
func (e *CollyExtractor) ExtractList(ctx context.Context, searchURL string, page int) (*ListPage, error) {
	result := &ListPage{Page: page, URL: searchURL}
	var extractErr error

	collector := e.collector.Clone()

	collector.OnHTML(e.selectors.Item, func(el *colly.HTMLElement) {
		link := el.ChildAttr(e.selectors.Link, "href")
		if link == "" {
			link = el.Attr("href")
		}
		if !strings.HasPrefix(link, "http") {
			link = el.Request.AbsoluteURL(link)
		}

		cand := &Candidate{SourceURL: link}
		for _, attr := range e.selectors.IDAttrs {
			if v := strings.TrimSpace(el.Attr(attr)); v != "" {
				cand.IDCandidates = append(cand.IDCandidates, v)
			}
		}
		if e.selectors.PublishedAt != "" {
			cand.PublishedAt = strings.TrimSpace(el.ChildAttr(e.selectors.PublishedAt, "datetime"))
			if cand.PublishedAt == "" {
				cand.PublishedAt = strings.TrimSpace(el.ChildText(e.selectors.PublishedAt))
			}
		}
		if e.selectors.UpdatedAt != "" {
			cand.UpdatedAt = strings.TrimSpace(el.ChildAttr(e.selectors.UpdatedAt, "datetime"))
			if cand.UpdatedAt == "" {
				cand.UpdatedAt = strings.TrimSpace(el.ChildText(e.selectors.UpdatedAt))
			}
		}

		result.Candidates = append(result.Candidates, cand)
	})

	if e.selectors.NextPage != "" {
		collector.OnHTML(e.selectors.NextPage, func(el *colly.HTMLElement) {
			result.HasNext = true
		})
	}

	collector.OnError(func(r *colly.Response, err error) {
		extractErr = fmt.Errorf("colly error: %w (status: %d)", err, r.StatusCode)
	})

	if err := collector.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("visit list url: %w", err)
	}
	if extractErr != nil {
		return nil, extractErr
	}

	return result, nil
}

// FetchDetail fetches a detail page and returns its raw HTML. Parsing is
// deliberately left to the worker so the fetched page can travel over the
// queue unmodified.
func (e *CollyExtractor) FetchDetail(ctx context.Context, url string) (string, error) {
	var html string
	var fetchErr error

	collector := e.collector.Clone()

	collector.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("colly error: %w (status: %d)", err, r.StatusCode)
	})

	if err := collector.Visit(url); err != nil {
		return "", fmt.Errorf("visit detail url: %w", err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if html == "" {
		return "", fmt.Errorf("empty response from %s", url)
	}

	return html, nil
}
