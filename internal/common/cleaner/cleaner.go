// Package cleaner strips scraped HTML down to the plain text that feeds the
// content fingerprint.
package cleaner

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Cleaner sanitizes HTML content using Bluemonday.
type Cleaner struct {
	strict *bluemonday.Policy
}

// NewCleaner creates a cleaner with the strict policy: all markup, scripts
// and event handlers go, only text content remains.
func NewCleaner() *Cleaner {
	return &Cleaner{strict: bluemonday.StrictPolicy()}
}

// CleanToText strips all markup and returns the plain text content. Output
// feeds the content fingerprint, so whitespace runs collapse to single
// spaces to keep the digest stable across markup reflows.
func (c *Cleaner) CleanToText(html string) string {
	text := c.strict.Sanitize(html)
	return strings.Join(strings.Fields(text), " ")
}
