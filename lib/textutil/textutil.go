package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeText lowercases and collapses all whitespace runs to a
// single space, so marker matching is insensitive to layout churn.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \n\t")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// ContainsMarker reports whether the normalized text contains any of
// the given markers. Markers are expected to already be lowercase.
func ContainsMarker(s string, markers []string) bool {
	s = NormalizeText(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
