package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
)

// fakeSearcher returns canned candidates keyed by the local title.
type fakeSearcher struct {
	results map[string][]dblp.Candidate
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, title string) ([]dblp.Candidate, error) {
	f.queries = append(f.queries, title)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[title], nil
}

// checkAccounting asserts every input entry is finalized, pending, or not
// yet processed, and never two of those at once.
func checkAccounting(t *testing.T, w *Workflow) {
	t.Helper()
	p := w.Progress()
	if got := p.Finalized + p.Pending + (p.Total - p.Processed); got != p.Total {
		t.Fatalf("accounting broken: %+v", p)
	}

	seen := make(map[int]bool)
	for _, f := range w.Finalized() {
		if seen[f.Index] {
			t.Fatalf("index %d finalized twice", f.Index)
		}
		seen[f.Index] = true
	}
	for _, c := range w.Pending() {
		if seen[c.Index] {
			t.Fatalf("index %d both finalized and pending", c.Index)
		}
		seen[c.Index] = true
	}
}

func mixedBatch() ([]reference.Entry, *fakeSearcher) {
	entries := []reference.Entry{
		entry("exact", map[string]string{"title": "Attention Is All You Need"}),
		entry("fuzzy", map[string]string{"title": "Graph Networks for Molecules"}),
		entry("nothing", map[string]string{"title": "An Obscure Tech Report", "note": "internal"}),
		entry("untitled", map[string]string{"year": "1999"}),
	}
	searcher := &fakeSearcher{results: map[string][]dblp.Candidate{
		"Attention Is All You Need": {
			{Title: "Attention is All you Need.", Venue: "CoRR", Year: "2017"},
			{Title: "Attention is All you Need.", Venue: "NIPS", Year: "2017", DOI: "10.5555/attn"},
		},
		"Graph Networks for Molecules": {
			{Title: "Graph Neural Networks", Venue: "TNN"},
			{Title: "Molecular Graph Learning", Venue: "JCIM"},
		},
	}}
	return entries, searcher
}

func TestWorkflow_MixedBatch(t *testing.T) {
	entries, searcher := mixedBatch()
	w := NewWorkflow(searcher, NewMerger(nil, nil), nil)

	if w.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", w.State())
	}
	w.Load(entries)

	var outcomes []Outcome
	if err := w.Run(context.Background(), func(o Outcome) {
		outcomes = append(outcomes, o)
		checkAccounting(t, w)
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantKinds := []OutcomeKind{OutcomeAccepted, OutcomeConflicted, OutcomeUnresolved, OutcomeUnresolved}
	if len(outcomes) != len(wantKinds) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(wantKinds))
	}
	for i, want := range wantKinds {
		if outcomes[i].Kind != want {
			t.Errorf("outcome %d kind = %s, want %s", i, outcomes[i].Kind, want)
		}
	}

	// Peer-reviewed venue preferred over CoRR
	if got := outcomes[0].Entry.Get("journal"); got != "NIPS" {
		t.Errorf("accepted journal = %q, want NIPS", got)
	}
	if outcomes[0].Entry.Key != "exact" {
		t.Errorf("accepted key = %q, want exact", outcomes[0].Entry.Key)
	}

	// Untitled entries are never searched
	if len(searcher.queries) != 3 {
		t.Errorf("searcher queried %d times, want 3: %v", len(searcher.queries), searcher.queries)
	}

	if w.State() != StateConflictResolution {
		t.Fatalf("state = %s, want conflict_resolution", w.State())
	}
	c, ok := w.Current()
	if !ok || c.Original.Key != "fuzzy" || len(c.Candidates) != 2 {
		t.Fatalf("Current() = %+v, %v", c, ok)
	}

	merged, err := w.Choose(context.Background(), 2)
	if err != nil {
		t.Fatalf("Choose() error = %v", err)
	}
	if merged.Get("title") != "Molecular Graph Learning" || merged.Key != "fuzzy" {
		t.Errorf("Choose() merged = %+v", merged)
	}
	checkAccounting(t, w)

	if w.State() != StateDone {
		t.Fatalf("state = %s, want done", w.State())
	}

	results, err := w.Results()
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(results) != len(entries) {
		t.Fatalf("Results() has %d entries, want %d", len(results), len(entries))
	}
	for i, e := range results {
		if e.Key != entries[i].Key {
			t.Errorf("result %d key = %q, want %q (input order)", i, e.Key, entries[i].Key)
		}
	}
	if got := results[2].Get("note"); got != "internal. "+ManualSearchNote {
		t.Errorf("annotated note = %q", got)
	}
	if got := results[3].Get("note"); got != ManualSearchNote {
		t.Errorf("untitled note = %q", got)
	}

	// Input slice is untouched
	if entries[2].Get("note") != "internal" {
		t.Errorf("input entry mutated: %+v", entries[2])
	}
}

func conflictBatch(n int) ([]reference.Entry, *fakeSearcher) {
	searcher := &fakeSearcher{results: make(map[string][]dblp.Candidate)}
	var entries []reference.Entry
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("local title number %d", i)
		entries = append(entries, entry(fmt.Sprintf("k%d", i), map[string]string{"title": title}))
		searcher.results[title] = []dblp.Candidate{{Title: fmt.Sprintf("remote %d", i)}}
	}
	return entries, searcher
}

func TestWorkflow_SkipKeepsOriginalAndOrder(t *testing.T) {
	entries, searcher := conflictBatch(3)
	w := NewWorkflow(searcher, nil, nil)
	w.Load(entries)
	if err := w.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(w.Pending()) != 3 {
		t.Fatalf("pending = %d, want 3", len(w.Pending()))
	}

	// Move to the middle conflict and skip it
	if err := w.Defer(); err != nil {
		t.Fatalf("Defer() error = %v", err)
	}
	if c, _ := w.Current(); c.Original.Key != "k1" {
		t.Fatalf("Current() after Defer = %q, want k1", c.Original.Key)
	}

	skipped, err := w.Skip()
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if skipped.Get("title") != "local title number 1" || skipped.Has("note") {
		t.Errorf("Skip() should return the unmerged original, got %+v", skipped)
	}
	checkAccounting(t, w)

	pending := w.Pending()
	if len(pending) != 2 || pending[0].Original.Key != "k0" || pending[1].Original.Key != "k2" {
		t.Errorf("pending after skip = %+v", pending)
	}
	if c, _ := w.Current(); c.Original.Key != "k2" {
		t.Errorf("Current() after skip = %q, want k2", c.Original.Key)
	}

	finalized := w.Finalized()
	if len(finalized) != 1 || finalized[0].Kind != OutcomeSkipped || finalized[0].Entry.Get("title") != "local title number 1" {
		t.Errorf("finalized = %+v", finalized)
	}

	// Skipping the last element wraps the cursor
	if _, err := w.Skip(); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if c, _ := w.Current(); c.Original.Key != "k0" {
		t.Errorf("Current() after wrap = %q, want k0", c.Original.Key)
	}
	if _, err := w.Skip(); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if w.State() != StateDone {
		t.Errorf("state = %s, want done", w.State())
	}
	results, _ := w.Results()
	if len(results) != 3 {
		t.Errorf("Results() = %d entries, want 3", len(results))
	}
}

func TestWorkflow_ConflictChoicesTruncated(t *testing.T) {
	title := "local title"
	var cands []dblp.Candidate
	for i := 0; i < 7; i++ {
		cands = append(cands, dblp.Candidate{Title: fmt.Sprintf("unrelated %d", i)})
	}
	searcher := &fakeSearcher{results: map[string][]dblp.Candidate{title: cands}}

	w := NewWorkflow(searcher, nil, nil)
	w.Load([]reference.Entry{entry("k", map[string]string{"title": title})})
	outcome, err := w.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if len(outcome.Candidates) != MaxChoices {
		t.Errorf("offered %d candidates, want %d", len(outcome.Candidates), MaxChoices)
	}
	if outcome.Candidates[0].Candidate.Title != "unrelated 0" {
		t.Errorf("candidates should keep search order, first = %q", outcome.Candidates[0].Candidate.Title)
	}

	for _, bad := range []int{0, 6, -1} {
		if _, err := w.Choose(context.Background(), bad); !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("Choose(%d) error = %v, want ErrInvalidChoice", bad, err)
		}
	}
	if w.State() != StateConflictResolution {
		t.Errorf("invalid choice changed state to %s", w.State())
	}
}

func TestWorkflow_WrongState(t *testing.T) {
	w := NewWorkflow(&fakeSearcher{}, nil, nil)

	if _, err := w.Advance(context.Background()); !errors.Is(err, ErrWrongState) {
		t.Errorf("Advance() on idle error = %v", err)
	}
	if _, err := w.Skip(); !errors.Is(err, ErrWrongState) {
		t.Errorf("Skip() on idle error = %v", err)
	}
	if _, err := w.Choose(context.Background(), 1); !errors.Is(err, ErrWrongState) {
		t.Errorf("Choose() on idle error = %v", err)
	}
	if err := w.Defer(); !errors.Is(err, ErrWrongState) {
		t.Errorf("Defer() on idle error = %v", err)
	}
	if _, err := w.Results(); !errors.Is(err, ErrWrongState) {
		t.Errorf("Results() on idle error = %v", err)
	}
}

func TestWorkflow_EmptyBatchIsDone(t *testing.T) {
	w := NewWorkflow(&fakeSearcher{}, nil, nil)
	id := w.Load(nil)
	if id == "" {
		t.Error("Load() returned empty batch ID")
	}
	if w.State() != StateDone {
		t.Fatalf("state = %s, want done", w.State())
	}
	results, err := w.Results()
	if err != nil || len(results) != 0 {
		t.Errorf("Results() = %v, %v", results, err)
	}
}

func TestWorkflow_SearchErrorKeepsCursor(t *testing.T) {
	entries, searcher := conflictBatch(2)
	searcher.err = context.Canceled

	w := NewWorkflow(searcher, nil, nil)
	w.Load(entries)
	if _, err := w.Advance(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Advance() error = %v, want context.Canceled", err)
	}
	if p := w.Progress(); p.Processed != 0 || p.State != StateProcessing {
		t.Errorf("Progress() after error = %+v", p)
	}

	searcher.err = nil
	if err := w.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p := w.Progress(); p.Processed != 2 || p.Pending != 2 {
		t.Errorf("Progress() after retry = %+v", p)
	}
}

func TestWorkflow_Reset(t *testing.T) {
	entries, searcher := mixedBatch()
	w := NewWorkflow(searcher, nil, nil)
	w.Load(entries)
	if err := w.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	w.Reset()
	if w.State() != StateIdle {
		t.Errorf("state after Reset = %s, want idle", w.State())
	}
	if p := w.Progress(); p.Total != 0 || p.Finalized != 0 || p.Pending != 0 || p.BatchID != "" {
		t.Errorf("Progress() after Reset = %+v", p)
	}
	if w.Pending() != nil || w.Finalized() != nil {
		t.Error("Reset should drop pending and finalized entries")
	}

	// A new batch starts fresh
	first := w.Load(entries[:1])
	if err := w.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if w.State() != StateDone || w.Progress().BatchID != first {
		t.Errorf("second batch state = %s, progress = %+v", w.State(), w.Progress())
	}
}

func TestAnnotate(t *testing.T) {
	plain := entry("k", nil)
	if got := Annotate(plain).Get("note"); got != ManualSearchNote {
		t.Errorf("Annotate() note = %q", got)
	}
	if plain.Has("note") {
		t.Error("Annotate() mutated its input")
	}

	noted := entry("k", map[string]string{"note": "see errata"})
	if got := Annotate(noted).Get("note"); got != "see errata. "+ManualSearchNote {
		t.Errorf("Annotate() note = %q", got)
	}

	// An empty note gets no leading separator.
	empty := entry("k", map[string]string{"note": ""})
	if got := Annotate(empty).Get("note"); got != ManualSearchNote {
		t.Errorf("Annotate() on empty note = %q, want %q", got, ManualSearchNote)
	}
}
