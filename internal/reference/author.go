package reference

import (
	"strings"
	"unicode"
)

// AuthorSeparator joins display names in a merged author field.
const AuthorSeparator = "; "

// DisplayName trims an author name and drops a trailing all-digit
// disambiguation token ("John Smith 0016" -> "John Smith").
func DisplayName(name string) string {
	fields := strings.Fields(name)
	if len(fields) > 1 && isDigits(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// JoinAuthors joins non-empty display names with AuthorSeparator.
func JoinAuthors(names []string) string {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if n = DisplayName(n); n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, AuthorSeparator)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
