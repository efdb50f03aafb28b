package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
	"github.com/matsen/bibresolve/internal/resolve"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input      string
		wantAction promptAction
		wantChoice int
		wantErr    bool
	}{
		{"1\n", actionChoose, 1, false},
		{" 3 ", actionChoose, 3, false},
		{"s\n", actionSkip, 0, false},
		{"S", actionSkip, 0, false},
		{"d", actionDefer, 0, false},
		{"q", actionQuit, 0, false},
		{"0", 0, 0, true},
		{"4", 0, 0, true}, // only 3 candidates
		{"x", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			action, choice, err := parseChoice(tt.input, 3)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseChoice(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseChoice(%q) error = %v", tt.input, err)
			}
			if action != tt.wantAction || choice != tt.wantChoice {
				t.Errorf("parseChoice(%q) = (%v, %d), want (%v, %d)",
					tt.input, action, choice, tt.wantAction, tt.wantChoice)
			}
		})
	}
}

// fakeSearcher answers every title with the same weak candidates.
type fakeSearcher struct {
	hits []dblp.Candidate
}

func (f fakeSearcher) Search(ctx context.Context, title string) ([]dblp.Candidate, error) {
	return f.hits, nil
}

func newConflictedWorkflow(t *testing.T, keys ...string) *resolve.Workflow {
	t.Helper()
	searcher := fakeSearcher{hits: []dblp.Candidate{
		{Title: "Something else entirely", Year: "2019", Venue: "ICML"},
		{Title: "Another unrelated paper", Year: "2020", Venue: "CoRR"},
	}}
	wf := resolve.NewWorkflow(searcher, nil, nil)

	var entries []reference.Entry
	for _, k := range keys {
		e := reference.New("article", k)
		e.Set(reference.FieldTitle, "Graph neural networks for "+k)
		entries = append(entries, e)
	}
	wf.Load(entries)
	if err := wf.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wf.State() != resolve.StateConflictResolution {
		t.Fatalf("State() = %s, want %s", wf.State(), resolve.StateConflictResolution)
	}
	return wf
}

func kinds(wf *resolve.Workflow) map[string]resolve.OutcomeKind {
	out := map[string]resolve.OutcomeKind{}
	for _, f := range wf.Finalized() {
		out[f.Entry.Key] = f.Kind
	}
	return out
}

func TestResolveAll_NonInteractiveSkips(t *testing.T) {
	wf := newConflictedWorkflow(t, "a", "b")
	p := &conflictPrompter{out: &bytes.Buffer{}}

	if err := p.resolveAll(context.Background(), wf); err != nil {
		t.Fatalf("resolveAll() error = %v", err)
	}
	if wf.State() != resolve.StateDone {
		t.Fatalf("State() = %s, want done", wf.State())
	}
	for key, kind := range kinds(wf) {
		if kind != resolve.OutcomeSkipped {
			t.Errorf("%s: kind = %s, want skipped", key, kind)
		}
	}
}

func TestResolveAll_Interactive(t *testing.T) {
	wf := newConflictedWorkflow(t, "a", "b", "c")
	// a is deferred, b skipped, c gets an invalid answer then 2, a finally gets 1.
	input := "d\ns\n7\n2\n1\n"
	var out bytes.Buffer
	p := &conflictPrompter{in: bufio.NewReader(strings.NewReader(input)), out: &out}

	if err := p.resolveAll(context.Background(), wf); err != nil {
		t.Fatalf("resolveAll() error = %v", err)
	}
	if wf.State() != resolve.StateDone {
		t.Fatalf("State() = %s, want done", wf.State())
	}

	got := kinds(wf)
	want := map[string]resolve.OutcomeKind{
		"a": resolve.OutcomeChosen,
		"b": resolve.OutcomeSkipped,
		"c": resolve.OutcomeChosen,
	}
	for key, kind := range want {
		if got[key] != kind {
			t.Errorf("%s: kind = %s, want %s", key, got[key], kind)
		}
	}

	results, err := wf.Results()
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	// c chose candidate 2, a chose candidate 1 (overlay, no fetcher).
	if results[0].Get(reference.FieldTitle) != "Something else entirely" {
		t.Errorf("a title = %q", results[0].Get(reference.FieldTitle))
	}
	if results[2].Get(reference.FieldTitle) != "Another unrelated paper" {
		t.Errorf("c title = %q", results[2].Get(reference.FieldTitle))
	}
	if !strings.Contains(out.String(), "Invalid choice") {
		t.Errorf("output missing invalid-choice message:\n%s", out.String())
	}
}

func TestResolveAll_EOFSkipsRest(t *testing.T) {
	wf := newConflictedWorkflow(t, "a", "b")
	p := &conflictPrompter{in: bufio.NewReader(strings.NewReader("1\n")), out: &bytes.Buffer{}}

	if err := p.resolveAll(context.Background(), wf); err != nil {
		t.Fatalf("resolveAll() error = %v", err)
	}
	got := kinds(wf)
	if got["a"] != resolve.OutcomeChosen || got["b"] != resolve.OutcomeSkipped {
		t.Errorf("kinds = %v, want a chosen, b skipped", got)
	}
}

func TestResolveAll_Quit(t *testing.T) {
	wf := newConflictedWorkflow(t, "a", "b", "c")
	p := &conflictPrompter{in: bufio.NewReader(strings.NewReader("q\n")), out: &bytes.Buffer{}}

	if err := p.resolveAll(context.Background(), wf); err != nil {
		t.Fatalf("resolveAll() error = %v", err)
	}
	if n := summarize(wf.Finalized()).Skipped; n != 3 {
		t.Errorf("skipped = %d, want 3", n)
	}
}

func TestDescribeOutcome(t *testing.T) {
	entry := reference.New("article", "smith20")
	match := resolve.ScoredCandidate{Candidate: dblp.Candidate{Title: "A Title"}, Score: 1}

	tests := []struct {
		name    string
		outcome resolve.Outcome
		want    string
	}{
		{
			name:    "accepted",
			outcome: resolve.Outcome{Kind: resolve.OutcomeAccepted, Index: 0, Entry: entry, Match: &match},
			want:    `[1/4] smith20: matched "A Title" (1.00)`,
		},
		{
			name:    "conflicted",
			outcome: resolve.Outcome{Kind: resolve.OutcomeConflicted, Index: 1, Entry: entry, Candidates: []resolve.ScoredCandidate{match, match}},
			want:    "[2/4] smith20: 2 possible matches, decide later",
		},
		{
			name:    "unresolved",
			outcome: resolve.Outcome{Kind: resolve.OutcomeUnresolved, Index: 3, Entry: entry},
			want:    "[4/4] smith20: not found on DBLP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeOutcome(tt.outcome, 4); got != tt.want {
				t.Errorf("describeOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}
