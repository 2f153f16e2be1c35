package domain

import (
	"errors"
	"time"
)

// ErrNoIdentity is returned when neither a native ID nor a usable source URL
// is available for a listing.
var ErrNoIdentity = errors.New("no derivable listing identity")

// ListingSummary is the summary information captured from search/list pages.
// Timestamps are ISO-8601 UTC strings, empty when the site does not expose them.
type ListingSummary struct {
	ListingID   string `json:"listing_id"`
	SourceURL   string `json:"source_url"`
	PublishedAt string `json:"published_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	// Provenance records how the listing ID was derived: candidate,
	// url_uuid, url_numeric, url_query, or url_hash.
	Provenance string `json:"provenance,omitempty"`
}

// StateRecord is one persisted tracking row, keyed by listing ID.
type StateRecord struct {
	ListingID         string `json:"listing_id"`
	LastSeenAt        string `json:"last_seen_at"`
	UpdatedAt         string `json:"updated_at,omitempty"`
	DetailFingerprint string `json:"detail_fingerprint,omitempty"`
}

// JobCodeEntry is one job code parsed out of a listing's detail text.
// Salary bounds are annual NOK; nil when the text carried no numeric salary.
type JobCodeEntry struct {
	Code           string `json:"code"`
	Title          string `json:"title,omitempty"`
	SalaryMin      *int   `json:"salary_min"`
	SalaryMax      *int   `json:"salary_max"`
	SalaryText     string `json:"salary_text,omitempty"`
	IsSharedSalary bool   `json:"is_shared_salary"`
}

// DetailRecord is the parsed detail page for one listing, transient within a run.
type DetailRecord struct {
	ListingID          string         `json:"listing_id"`
	Title              string         `json:"title"`
	EmployerRaw        string         `json:"employer_raw"`
	EmployerNormalized string         `json:"employer_normalized"`
	Locations          []string       `json:"locations,omitempty"`
	EmploymentType     string         `json:"employment_type,omitempty"`
	Extent             string         `json:"extent,omitempty"`
	SalaryText         string         `json:"salary_text,omitempty"`
	PublishedAt        string         `json:"published_at,omitempty"`
	UpdatedAt          string         `json:"updated_at,omitempty"`
	ApplyDeadline      string         `json:"apply_deadline,omitempty"`
	SourceURL          string         `json:"source_url"`
	Codes              []JobCodeEntry `json:"codes"`
}

// ExplodedRow is one output record per (listing_id, job_code) pair.
type ExplodedRow struct {
	ListingID          string  `json:"listing_id"`
	JobCode            string  `json:"job_code"`
	JobTitle           string  `json:"job_title"`
	EmployerNormalized string  `json:"employer_normalized"`
	SalaryMin          *int    `json:"salary_min"`
	SalaryMax          *int    `json:"salary_max"`
	SalaryText         string  `json:"salary_text,omitempty"`
	IsSharedSalary     bool    `json:"is_shared_salary"`
	PublishedAt        string  `json:"published_at,omitempty"`
	UpdatedAt          string  `json:"updated_at,omitempty"`
	ApplyDeadline      string  `json:"apply_deadline,omitempty"`
	SourceURL          string  `json:"source_url"`
	ScrapedAt          string  `json:"scraped_at"`
	MatchedOrgTag      string  `json:"matched_org_tag"`
	MatchConfidence    float64 `json:"match_confidence"`
}

// ListingAggregate is the listing-level companion row emitted next to the
// exploded set.
type ListingAggregate struct {
	ListingID          string  `json:"listing_id"`
	Title              string  `json:"title"`
	EmployerNormalized string  `json:"employer_normalized"`
	MatchedOrgTag      string  `json:"matched_org_tag"`
	MatchConfidence    float64 `json:"match_confidence"`
	CodeCount          int     `json:"code_count"`
	SourceURL          string  `json:"source_url"`
	ScrapedAt          string  `json:"scraped_at"`
}

// RawDetail is a fetched detail page plus the summary it was selected from,
// handed from the crawler to the worker over the queue.
type RawDetail struct {
	ListingID string         `json:"listing_id"`
	SourceURL string         `json:"source_url"`
	HTML      string         `json:"html"`
	Summary   ListingSummary `json:"summary"`
	Reason    string         `json:"reason,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// ISOTime formats a time as the ISO-8601 UTC string used across all outputs.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
