package scrape

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(\+?\d[\d\s().-]{7,}\d)`)
	// A line that plausibly is a person's name: letters, spaces,
	// apostrophes and hyphens only, at least 5 chars.
	nameRe    = regexp.MustCompile(`^[A-Za-z\s'-]{5,}$`)
	contactRe = regexp.MustCompile(`(?i)contact`)
)

// contactInfo is the output of the free-text contact scan.
type contactInfo struct {
	Person string
	Email  string
	Phone  string
}

// scanContact extracts contact details from a block of page text.
// Structured label lookup happens elsewhere; this is the best-effort
// fallback layer. First match wins for each field, and a miss leaves the
// field as empty string.
func scanContact(text string) contactInfo {
	var info contactInfo
	if strings.TrimSpace(text) == "" {
		return info
	}

	if m := emailRe.FindString(text); m != "" {
		info.Email = m
	}
	if m := phoneRe.FindString(text); m != "" {
		info.Phone = strings.TrimSpace(m)
	}

	lines := splitLines(text)
	nameLine := ""
	for _, l := range lines {
		if contactRe.MatchString(l) && strings.ContainsAny(l, " \t") {
			nameLine = l
			break
		}
	}
	if nameLine == "" {
		for _, l := range lines {
			if nameRe.MatchString(l) {
				nameLine = l
				break
			}
		}
	}
	if nameLine != "" {
		info.Person = cleanText(stripContactPrefix(nameLine))
	}

	return info
}

func splitLines(text string) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimSpace(raw)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

var contactPrefixRe = regexp.MustCompile(`(?i)^contact[:\s]*`)

func stripContactPrefix(s string) string {
	return strings.TrimSpace(contactPrefixRe.ReplaceAllString(s, ""))
}
