// Package bibtex reads and writes BibTeX bibliographies.
package bibtex

import (
	"fmt"
	"strings"

	"github.com/matsen/bibresolve/internal/reference"
)

// DefaultEntryType is used when an entry has no type.
const DefaultEntryType = "misc"

// Format converts an entry to BibTeX.
func Format(e reference.Entry) string {
	entryType := e.Type
	if entryType == "" {
		entryType = DefaultEntryType
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, e.Key))
	for _, name := range e.FieldNames() {
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", name, protectBraces(e.Fields[name])))
	}
	b.WriteString("}\n")

	return b.String()
}

// FormatList converts multiple entries to BibTeX, separated by blank lines.
func FormatList(entries []reference.Entry) string {
	var out []string
	for _, e := range entries {
		out = append(out, Format(e))
	}
	return strings.Join(out, "\n")
}

// protectBraces returns s unchanged when its braces balance. Otherwise the
// braces are dropped, since an unbalanced value would swallow the rest of the
// file when written inside {...}.
func protectBraces(s string) string {
	if bracesBalanced(s) {
		return s
	}
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

func bracesBalanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
