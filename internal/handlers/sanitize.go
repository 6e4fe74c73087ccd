package handlers

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// contentPolicy strips all HTML from user-supplied text. Rendering flags
// (markdown, math) are honored client-side, so stored content stays plain.
var contentPolicy = bluemonday.StrictPolicy()

func sanitizeContent(s string) string {
	return strings.TrimSpace(contentPolicy.Sanitize(s))
}
