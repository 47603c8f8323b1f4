package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const previewLimit = 160

var previewPolicy = bluemonday.StrictPolicy()

// Preview derives a short plain-text snippet from a message body for
// list rendering. HTML is stripped, entities decoded, whitespace
// collapsed. The stored original content is never touched.
func Preview(text, htmlBody string) string {
	source := text
	if strings.TrimSpace(source) == "" && htmlBody != "" {
		source = html.UnescapeString(previewPolicy.Sanitize(htmlBody))
	}
	source = strings.Join(strings.Fields(source), " ")
	runes := []rune(source)
	if len(runes) <= previewLimit {
		return source
	}
	return strings.TrimSpace(string(runes[:previewLimit])) + "…"
}
