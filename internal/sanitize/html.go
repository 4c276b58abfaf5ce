// Package sanitize strips unsafe markup from scraped text before it enters
// a canonical event record.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strictPolicy removes all HTML tags and attributes. Used for fields
	// that must be plain text (titles, venue names, categories).
	strictPolicy = bluemonday.StrictPolicy()

	// ugcPolicy allows safe basic formatting (<p>, <b>, <em>, <a>, lists).
	// Used for event descriptions, where venues often mark up their copy.
	ugcPolicy = bluemonday.UGCPolicy()
)

// Title strips all HTML and collapses the result to trimmed plain text.
func Title(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

// Description sanitizes scraped description HTML, removing scripts, iframes,
// event handlers, and style attributes while keeping basic formatting.
func Description(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}
