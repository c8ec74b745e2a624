// Package sanitize cleans user-authored rich text before it reaches the console.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugc    = bluemonday.UGCPolicy()
	strict = bluemonday.StrictPolicy()
)

// HTML keeps safe formatting and links, dropping scripts, event handlers and
// javascript: URLs.
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(ugc.Sanitize(s))
}

// Text strips all markup and returns plain text. Entities the policy
// escapes are decoded again, so "Smith & O'Brien" stays as written.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
