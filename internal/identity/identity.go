// Package identity derives stable listing identifiers from page data.
//
// Resolution prefers site-native IDs (data attributes, UUIDs or numeric IDs in
// the URL, known query keys) and falls back to a hash of the canonicalized
// source URL, so the same listing maps to the same ID across runs.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/statjobs/go-scraper/internal/domain"
)

var (
	uuidRe    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	numericRe = regexp.MustCompile(`[0-9]{6,}`)
)

// Query keys known to carry a site-native listing ID.
var idQueryKeys = []string{"id", "jobId", "job_id", "listingId", "listing_id", "uuid"}

var trackingQueryKeys = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
}

// CanonicalURL normalizes a source URL for stable hashing: lowercase
// scheme/host, default ports and fragments stripped, tracking params dropped,
// remaining query sorted, trailing slash removed.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	u.Host = host
	u.Fragment = ""

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	q := u.Query()
	kept := url.Values{}
	for key, vals := range q {
		if trackingQueryKeys[key] {
			continue
		}
		for _, v := range vals {
			kept.Add(key, v)
		}
	}
	// Encode sorts keys; sort values per key for full determinism.
	for key := range kept {
		sort.Strings(kept[key])
	}
	u.RawQuery = kept.Encode()

	return u.String(), nil
}

// Resolve derives a stable listing ID from candidate attribute values and the
// source URL. It is a pure function: identical inputs always yield identical
// IDs. Returns the ID and a provenance tag (candidate, url_uuid, url_numeric,
// url_query, url_hash), or domain.ErrNoIdentity when nothing usable exists.
func Resolve(candidates []string, sourceURL string) (string, string, error) {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, "candidate", nil
		}
	}

	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return "", "", domain.ErrNoIdentity
	}

	if hit := uuidRe.FindString(sourceURL); hit != "" {
		return strings.ToLower(hit), "url_uuid", nil
	}

	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", "", domain.ErrNoIdentity
	}

	if hit := numericRe.FindString(u.Path); hit != "" {
		return hit, "url_numeric", nil
	}

	q := u.Query()
	for _, key := range idQueryKeys {
		if v := q.Get(key); v != "" {
			return v, "url_query", nil
		}
	}

	canon, err := CanonicalURL(sourceURL)
	if err != nil {
		return "", "", domain.ErrNoIdentity
	}
	sum := sha1.Sum([]byte(canon))
	return hex.EncodeToString(sum[:]), "url_hash", nil
}
