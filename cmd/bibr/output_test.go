package main

import (
	"strings"
	"testing"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/resolve"
)

func TestTruncateForDisplay(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a much longer title", 10, "a much..."},
		{"Théorie des catégories", 10, "Théorie..."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := truncateForDisplay(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncateForDisplay(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	records := []resolve.Finalized{
		{Kind: resolve.OutcomeAccepted},
		{Kind: resolve.OutcomeAccepted},
		{Kind: resolve.OutcomeChosen},
		{Kind: resolve.OutcomeSkipped},
		{Kind: resolve.OutcomeUnresolved},
	}
	s := summarize(records)
	if s.Total != 5 || s.Accepted != 2 || s.Chosen != 1 || s.Skipped != 1 || s.Unresolved != 1 {
		t.Errorf("summarize() = %+v", s)
	}
}

func TestCandidateTable(t *testing.T) {
	got := candidateTable([]resolve.ScoredCandidate{
		{Candidate: dblp.Candidate{
			Title:   "Deep Residual Learning for Image Recognition",
			Authors: dblp.StructuredAuthors("Kaiming He 0001", "Xiangyu Zhang"),
			Venue:   "CVPR",
			Year:    "2016",
		}, Score: 0.75},
	})

	for _, want := range []string{"Score", "Title", "Authors", "Deep Residual Learning", "0.75", "Kaiming He; Xiangyu Zhang", "CVPR", "2016"} {
		if !strings.Contains(got, want) {
			t.Errorf("candidateTable() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "SCORE") {
		t.Errorf("candidateTable() upper-cased headers:\n%s", got)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("renderTable(nil) = %q, want empty", got)
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if isTerminal(strings.NewReader("1\n")) {
		t.Error("isTerminal(strings.Reader) = true")
	}
}

func TestNormalizeTitles(t *testing.T) {
	got := normalizeTitles([]string{"{BERT}: Pre-training", "Hello, World!"})
	want := []string{"bert pre training", "hello world"}
	for i, r := range got {
		if r.Normalized != want[i] {
			t.Errorf("normalizeTitles()[%d] = %q, want %q", i, r.Normalized, want[i])
		}
	}
}
