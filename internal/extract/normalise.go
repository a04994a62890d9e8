// Package extract turns raw portal HTML into structured entities:
// FAQ entries, agencies, ministries with their departments and
// agencies, and the services listed under each agency.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var wsRegex = regexp.MustCompile(`\s+`)

// NormaliseWS collapses runs of whitespace to single spaces and trims.
func NormaliseWS(text string) string {
	return strings.TrimSpace(wsRegex.ReplaceAllString(text, " "))
}

// NormaliseText canonicalises text for identifier hashing: Unicode
// NFKD, lower case, then every non-alphanumeric rune dropped. Two
// renderings of the same name always normalise to the same string.
func NormaliseText(text string) string {
	decomposed := norm.NFKD.String(NormaliseWS(text))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range strings.ToLower(decomposed) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormaliseURL trims the URL and strips any fragment. Invalid URLs are
// returned trimmed rather than rejected; fetch failures surface later
// with better context.
func NormaliseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Fragment = ""
	return u.String()
}

// ParseInt parses a plain decimal count. Anything else, including
// empty strings and signs, reports false.
func ParseInt(text string) (int, bool) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return 0, false
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0, false
	}
	return n, true
}
