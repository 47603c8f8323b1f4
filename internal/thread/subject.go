// Package thread matches inbound emails to existing conversations.
// Matching tolerates clients that rewrite subjects, drop In-Reply-To,
// or only populate References.
package thread

import (
	"regexp"
	"strconv"
	"strings"
)

// ticketTagPattern is the explicit reference tag agents embed in
// outbound subjects, e.g. "Re: Printer broken [#42]".
var ticketTagPattern = regexp.MustCompile(`\[#(\d+)\]`)

// replyPrefixPattern covers common reply/forward markers including the
// locale variants mail clients emit (Aw/Wg German, Sv Scandinavian,
// Antw Dutch), with or without a count like "Re[2]:".
var replyPrefixPattern = regexp.MustCompile(`(?i)^\s*(re|fwd|fw|aw|wg|sv|antw)(\[\d+\])?\s*:\s*`)

var messageIDPattern = regexp.MustCompile(`<([^<>]+)>`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// ExtractTicketNumber returns the ticket number from the first subject
// tag, if any.
func ExtractTicketNumber(subject string) (int64, bool) {
	m := ticketTagPattern.FindStringSubmatch(subject)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// NormalizeSubject reduces a subject to its comparable core: reply and
// forward prefixes stripped repeatedly, reference tags removed,
// whitespace collapsed, lowercased.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = ticketTagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeMessageID strips angle brackets and quoting from a mail
// Message-ID so stored and inbound forms compare equal.
func NormalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if m := messageIDPattern.FindStringSubmatch(value); m != nil {
		value = m[1]
	}
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, `"`)
	return strings.TrimSpace(value)
}

// NormalizeMessageIDs normalizes and dedupes a reference chain,
// preserving order.
func NormalizeMessageIDs(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var ids []string
	for _, raw := range values {
		id := NormalizeMessageID(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
