// Package reference defines the citation record shared by the parser, the
// resolver and the exporter.
package reference

import (
	"sort"
	"strings"
)

// Conventional BibTeX field names used by the resolver.
const (
	FieldTitle   = "title"
	FieldAuthor  = "author"
	FieldYear    = "year"
	FieldDOI     = "doi"
	FieldURL     = "url"
	FieldJournal = "journal"
	FieldNote    = "note"
)

// Entry is one bibliography item: an entry type, a unique citation key and
// free-form fields.
type Entry struct {
	Type   string            `json:"type"` // article, inproceedings, ...
	Key    string            `json:"key"`  // citation key, stable across merges
	Fields map[string]string `json:"fields"`
}

// New returns an entry with an initialized field map.
func New(entryType, key string) Entry {
	return Entry{Type: entryType, Key: key, Fields: make(map[string]string)}
}

// Clone returns a deep copy so callers can modify the result without
// aliasing the original upload.
func (e Entry) Clone() Entry {
	out := Entry{Type: e.Type, Key: e.Key, Fields: make(map[string]string, len(e.Fields))}
	for k, v := range e.Fields {
		out.Fields[k] = v
	}
	return out
}

// Get returns a field value, or "" if the field is absent.
func (e Entry) Get(field string) string {
	return e.Fields[field]
}

// Has reports whether the field is present.
func (e Entry) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Set assigns a field value, allocating the map if needed.
func (e *Entry) Set(field, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = value
}

// Title returns the title field.
func (e Entry) Title() string {
	return e.Fields[FieldTitle]
}

// FieldNames returns field names in export order: author and title first,
// everything else alphabetically.
func (e Entry) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := fieldRank(names[i]), fieldRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func fieldRank(name string) int {
	switch strings.ToLower(name) {
	case FieldAuthor:
		return 0
	case FieldTitle:
		return 1
	default:
		return 2
	}
}
