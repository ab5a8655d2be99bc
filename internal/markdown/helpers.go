package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const (
	mdV2SpecialChars    = `\._[](){}#|!+-=*~>` + "`"
	mdV2LinkURLSpecials = `\)`
)

//nolint:gochecknoglobals // Lookup tables meant to be immutable.
var (
	mdV2Lookup     = lookup(mdV2SpecialChars)
	mdV2LinkLookup = lookup(mdV2LinkURLSpecials)
)

// EscapeV2 escapes text outside of entities.
func EscapeV2(input string) string {
	return escape(input, &mdV2Lookup)
}

// EscapeLinkURL escapes the URL part of an inline link, where only `)` and
// `\` are special.
func EscapeLinkURL(input string) string {
	return escape(input, &mdV2LinkLookup)
}

// Link renders an inline link with escaped text and URL.
func Link(text, url string) string {
	return "[" + EscapeV2(text) + "](" + EscapeLinkURL(url) + ")"
}

func escape(input string, table *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if table[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if table[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func lookup(chars string) [256]bool {
	var m [256]bool
	for i := range len(chars) {
		m[chars[i]] = true
	}
	return m
}
