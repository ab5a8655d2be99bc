package domain

import (
	"net/url"
	"strings"
)

const (
	urlKeyPrefix   = "url:"
	titleKeyPrefix = "title:"
)

// CanonicalURL normalizes a link so that trivially different spellings of the
// same article compare equal. Invalid URLs are returned trimmed but otherwise verbatim.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for k := range query {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			query.Del(k)
		}
	}

	// Encode sorts by key.
	u.RawQuery = query.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	} else {
		u.Path = ""
	}
	u.RawPath = ""

	return u.String()
}

// NormalizeTitle lower-cases a title and collapses its whitespace.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// NaturalKey derives the deduplication key of a candidate: its canonical URL,
// or its normalized title when the URL is missing. Empty means the candidate
// cannot be identified and must be dropped.
func NaturalKey(rawURL, title string) string {
	if canonical := CanonicalURL(rawURL); canonical != "" {
		return urlKeyPrefix + canonical
	}

	if normalized := NormalizeTitle(title); normalized != "" {
		return titleKeyPrefix + normalized
	}

	return ""
}
