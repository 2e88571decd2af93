package scrape

import (
	"net/url"
	"strings"
)

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText normalizes whitespace (alias for normalizeSpace)
func cleanText(s string) string {
	return normalizeSpace(s)
}

// firstNonEmpty returns the first argument with non-blank content.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// pickNonEmpty implements the merge precedence used across adapters:
// the detail-phase value wins when non-empty, otherwise the list-phase
// value is retained.
func pickNonEmpty(detail, list string) string {
	if strings.TrimSpace(detail) != "" {
		return detail
	}
	return list
}

// truncate caps a string at n bytes, dropping any trailing partial rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// resolveURL resolves a possibly relative href against the page URL.
// Returns "" when either side fails to parse.
func resolveURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return CanonicalizeURL(href)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	rel, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return CanonicalizeURL(base.ResolveReference(rel).String())
}

// CanonicalizeURL removes common tracking parameters to ensure stable URLs.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Normalize host to lowercase
	u.Host = strings.ToLower(u.Host)
	// Remove fragment
	u.Fragment = ""

	q := u.Query()
	paramsToRemovePrefix := []string{"utm_"}
	exactParamsToRemove := []string{
		"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref", "session", "s_cid",
	}

	for k := range q {
		for _, prefix := range paramsToRemovePrefix {
			if strings.HasPrefix(k, prefix) {
				q.Del(k)
			}
		}
	}

	for _, p := range exactParamsToRemove {
		q.Del(p)
	}

	u.RawQuery = q.Encode()
	return u.String()
}
