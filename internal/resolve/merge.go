package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/matsen/bibresolve/internal/bibtex"
	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
)

// RecordFetcher retrieves canonical BibTeX for a DBLP record URL.
type RecordFetcher interface {
	FetchBibTeX(ctx context.Context, recordURL string) (string, error)
}

// overlayFields maps candidate attributes onto BibTeX fields for the
// fallback merge. Anything not listed here is not carried over.
var overlayFields = []struct {
	field string
	value func(dblp.Candidate) string
}{
	{reference.FieldTitle, func(c dblp.Candidate) string { return c.Title }},
	{reference.FieldYear, func(c dblp.Candidate) string { return c.Year }},
	{reference.FieldDOI, func(c dblp.Candidate) string { return c.DOI }},
	{reference.FieldURL, func(c dblp.Candidate) string { return c.URL }},
	{reference.FieldJournal, func(c dblp.Candidate) string { return c.Venue }},
	{reference.FieldNote, func(c dblp.Candidate) string { return c.Type }},
}

// Merger combines local entries with chosen candidates.
type Merger struct {
	fetcher RecordFetcher
	logger  *zap.Logger
}

// NewMerger creates a merger. A nil fetcher disables canonical retrieval.
func NewMerger(fetcher RecordFetcher, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{fetcher: fetcher, logger: logger}
}

// Merge returns a new entry combining local with candidate; local is never
// modified.
//
// When the candidate has a record URL and its canonical BibTeX can be
// fetched and parsed, that record is used wholesale except for the citation
// key, which stays the local one. Otherwise the candidate's fields are
// overlaid on a copy of the local entry.
func (m *Merger) Merge(ctx context.Context, local reference.Entry, c dblp.Candidate) reference.Entry {
	if canonical, ok := m.canonical(ctx, c); ok {
		canonical.Key = local.Key
		return canonical
	}
	return Overlay(local, c)
}

func (m *Merger) canonical(ctx context.Context, c dblp.Candidate) (reference.Entry, bool) {
	if m.fetcher == nil || c.URL == "" {
		return reference.Entry{}, false
	}
	log := m.logger.With(zap.String("record", c.URL))

	text, err := m.fetcher.FetchBibTeX(ctx, c.URL)
	if err != nil {
		log.Warn("could not retrieve canonical BibTeX, overlaying fields", zap.Error(err))
		return reference.Entry{}, false
	}

	entries, err := bibtex.ParseString(text)
	if err != nil || len(entries) == 0 {
		log.Warn("canonical BibTeX unusable, overlaying fields", zap.Error(err), zap.Int("entries", len(entries)))
		return reference.Entry{}, false
	}
	return entries[0], true
}

// Overlay copies local and sets mapped candidate fields that are non-empty.
// The author field is replaced whenever the candidate carried authors.
func Overlay(local reference.Entry, c dblp.Candidate) reference.Entry {
	merged := local.Clone()
	for _, f := range overlayFields {
		if v := f.value(c); v != "" {
			merged.Set(f.field, v)
		}
	}
	if c.Authors.Present() {
		merged.Set(reference.FieldAuthor, c.Authors.String())
	}
	return merged
}
