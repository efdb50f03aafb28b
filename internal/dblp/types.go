// Package dblp provides a client for the DBLP publication search API and
// its BibTeX record export.
package dblp

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/matsen/bibresolve/internal/reference"
)

// NotAvailable is shown for author data that cannot be interpreted.
const NotAvailable = "N/A"

// Candidate is one publication returned by a DBLP search.
type Candidate struct {
	Key     string  `json:"key,omitempty"` // DBLP record key, e.g. journals/nature/Smith20
	Title   string  `json:"title"`
	Authors Authors `json:"authors"`
	Venue   string  `json:"venue,omitempty"`
	Volume  string  `json:"volume,omitempty"`
	Pages   string  `json:"pages,omitempty"`
	Year    string  `json:"year,omitempty"`
	Type    string  `json:"type,omitempty"` // e.g. "Journal Articles"
	DOI     string  `json:"doi,omitempty"`
	EE      string  `json:"ee,omitempty"`  // electronic edition link
	URL     string  `json:"url,omitempty"` // DBLP record page, https://dblp.org/rec/...
}

// UnmarshalJSON decodes a hit's "info" object. DBLP encodes scalars as
// strings, numbers or lists depending on the record, so every scalar is
// decoded leniently.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key     flexString `json:"key"`
		Title   flexString `json:"title"`
		Authors Authors    `json:"authors"`
		Venue   flexString `json:"venue"`
		Volume  flexString `json:"volume"`
		Pages   flexString `json:"pages"`
		Year    flexString `json:"year"`
		Type    flexString `json:"type"`
		DOI     flexString `json:"doi"`
		EE      flexString `json:"ee"`
		URL     flexString `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Candidate{
		Key:     string(raw.Key),
		Title:   string(raw.Title),
		Authors: raw.Authors,
		Venue:   string(raw.Venue),
		Volume:  string(raw.Volume),
		Pages:   string(raw.Pages),
		Year:    string(raw.Year),
		Type:    string(raw.Type),
		DOI:     string(raw.DOI),
		EE:      string(raw.EE),
		URL:     string(raw.URL),
	}
	return nil
}

// IsPreprint reports whether the venue is a preprint server.
func (c Candidate) IsPreprint() bool {
	return strings.Contains(c.Venue, "CoRR") || strings.Contains(c.Venue, "arXiv")
}

// BibTeXURL returns the canonical BibTeX export URL for the record, or ""
// when the candidate has no record URL.
func (c Candidate) BibTeXURL() string {
	return BibTeXURL(c.URL)
}

// BibTeXURL derives the BibTeX export URL from a DBLP record URL.
func BibTeXURL(recordURL string) string {
	if recordURL == "" {
		return ""
	}
	return strings.Replace(recordURL, "/rec/", "/rec/bibtex/", 1)
}

// AuthorsKind tags the shape an author list arrived in.
type AuthorsKind int

const (
	AuthorsAbsent     AuthorsKind = iota // no authors field at all
	AuthorsPlain                         // a single string
	AuthorsStructured                    // objects with a "text" name
	AuthorsRaw                           // a list of plain strings
	AuthorsUnknown                       // present but not interpretable
)

// AuthorEntry is one structured author object.
type AuthorEntry struct {
	PID  string `json:"@pid,omitempty"`
	Text string `json:"text"`
}

// Authors is the author field of a candidate, decoded once from any of the
// shapes DBLP returns.
type Authors struct {
	Kind    AuthorsKind
	Plain   string
	Entries []AuthorEntry
	Raw     []string
}

// PlainAuthors builds a plain-string author list.
func PlainAuthors(s string) Authors {
	return Authors{Kind: AuthorsPlain, Plain: s}
}

// StructuredAuthors builds a structured author list from display texts.
func StructuredAuthors(texts ...string) Authors {
	entries := make([]AuthorEntry, len(texts))
	for i, t := range texts {
		entries[i] = AuthorEntry{Text: t}
	}
	return Authors{Kind: AuthorsStructured, Entries: entries}
}

// RawAuthors builds a list-of-strings author list.
func RawAuthors(names ...string) Authors {
	return Authors{Kind: AuthorsRaw, Raw: names}
}

// Present reports whether the candidate carried an authors field.
func (a Authors) Present() bool {
	return a.Kind != AuthorsAbsent
}

// Names returns display names with numeric disambiguation suffixes removed.
// A plain string is returned as a single name, untouched.
func (a Authors) Names() []string {
	switch a.Kind {
	case AuthorsPlain:
		if a.Plain == "" {
			return nil
		}
		return []string{a.Plain}
	case AuthorsStructured:
		names := make([]string, 0, len(a.Entries))
		for _, e := range a.Entries {
			text := e.Text
			if text == "" {
				text = NotAvailable
			}
			names = append(names, reference.DisplayName(text))
		}
		return names
	case AuthorsRaw:
		names := make([]string, 0, len(a.Raw))
		for _, n := range a.Raw {
			if n = reference.DisplayName(n); n != "" {
				names = append(names, n)
			}
		}
		return names
	}
	return nil
}

// String joins the names with "; ", or returns "N/A" when nothing usable
// is present.
func (a Authors) String() string {
	if a.Kind == AuthorsPlain {
		if a.Plain == "" {
			return NotAvailable
		}
		return a.Plain
	}
	joined := reference.JoinAuthors(a.Names())
	if joined == "" {
		return NotAvailable
	}
	return joined
}

// MarshalJSON emits the names as a list, or the plain string as-is.
func (a Authors) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AuthorsPlain:
		return json.Marshal(a.Plain)
	case AuthorsStructured, AuthorsRaw:
		return json.Marshal(a.Names())
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a string, a list of strings or objects, a single
// object, or an object wrapping any of those under "author".
func (a *Authors) UnmarshalJSON(data []byte) error {
	*a = decodeAuthors(bytes.TrimSpace(data), true)
	return nil
}

func decodeAuthors(data []byte, allowWrapper bool) Authors {
	if len(data) == 0 {
		return Authors{Kind: AuthorsUnknown}
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Authors{Kind: AuthorsUnknown}
		}
		return PlainAuthors(s)

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return Authors{Kind: AuthorsUnknown}
		}
		return decodeAuthorList(items)

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return Authors{Kind: AuthorsUnknown}
		}
		if inner, ok := obj["author"]; ok && allowWrapper {
			return decodeAuthors(bytes.TrimSpace(inner), false)
		}
		if _, ok := obj["text"]; ok {
			return Authors{Kind: AuthorsStructured, Entries: []AuthorEntry{decodeAuthorEntry(data)}}
		}
	}
	return Authors{Kind: AuthorsUnknown}
}

func decodeAuthorList(items []json.RawMessage) Authors {
	allStrings := true
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '"' {
			allStrings = false
			break
		}
	}

	if allStrings {
		names := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				names = append(names, s)
			}
		}
		return Authors{Kind: AuthorsRaw, Raw: names}
	}

	entries := make([]AuthorEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, decodeAuthorEntry(bytes.TrimSpace(item)))
	}
	return Authors{Kind: AuthorsStructured, Entries: entries}
}

// decodeAuthorEntry reads one list element; anything without a readable
// name yields an empty Text, which displays as "N/A".
func decodeAuthorEntry(item []byte) AuthorEntry {
	if len(item) == 0 {
		return AuthorEntry{}
	}
	if item[0] == '"' {
		var s string
		_ = json.Unmarshal(item, &s)
		return AuthorEntry{Text: s}
	}

	var raw struct {
		PID  flexString `json:"@pid"`
		Text flexString `json:"text"`
	}
	if err := json.Unmarshal(item, &raw); err != nil {
		return AuthorEntry{}
	}
	return AuthorEntry{PID: string(raw.PID), Text: string(raw.Text)}
}

// flexString decodes a JSON string, number, boolean or list of those into
// a string; lists are joined with ", " and anything else becomes "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '[':
		var items []flexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				parts = append(parts, string(it))
			}
		}
		*f = flexString(strings.Join(parts, ", "))
	case '{', 'n':
		*f = ""
	default:
		*f = flexString(data) // numbers and booleans
	}
	return nil
}

// searchResponse mirrors the JSON returned by /search/publ/api.
type searchResponse struct {
	Result struct {
		Hits struct {
			Total flexString `json:"@total"`
			Hit   []struct {
				Score flexString `json:"@score"`
				Info  Candidate  `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}
