package reference

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var titleSeparators = strings.NewReplacer(
	"{", "",
	"}", "",
	"--", " ",
	"-", " ",
)

// NormalizeTitle canonicalizes a title for searching and comparison:
// braces are dropped, hyphens become spaces, the text is lowercased and
// anything that is not a letter, digit or whitespace is removed.
// The result is NFC-normalized, and NormalizeTitle(NormalizeTitle(s)) ==
// NormalizeTitle(s).
func NormalizeTitle(title string) string {
	s := titleSeparators.Replace(norm.NFC.String(title))
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return norm.NFC.String(s)
}

// TitleWords returns the set of words in a normalized title.
func TitleWords(normalized string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		words[w] = struct{}{}
	}
	return words
}
