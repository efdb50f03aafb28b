// Package resolve matches bibliography entries against DBLP, merges
// confident matches and queues ambiguous ones for a human decision.
package resolve

import (
	"sort"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
)

// AutoAcceptThreshold is the similarity a candidate must strictly exceed to
// be merged without review.
const AutoAcceptThreshold = 0.8

// Similarity returns |A ∩ B| / |A ∪ B| over the word sets of two normalized
// titles, or 0 when both are empty.
func Similarity(a, b string) float64 {
	wa := reference.TitleWords(a)
	wb := reference.TitleWords(b)

	union := len(wa)
	shared := 0
	for w := range wb {
		if _, ok := wa[w]; ok {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// TitleSimilarity normalizes both titles and compares them.
func TitleSimilarity(a, b string) float64 {
	return Similarity(reference.NormalizeTitle(a), reference.NormalizeTitle(b))
}

// ScoredCandidate pairs a candidate with its similarity to the local title.
type ScoredCandidate struct {
	Candidate dblp.Candidate `json:"candidate"`
	Score     float64        `json:"score"`
}

// Exact reports whether the candidate clears the auto-accept threshold.
func (s ScoredCandidate) Exact() bool {
	return s.Score > AutoAcceptThreshold
}

// Rank scores candidates against a local title and partitions them.
// Exact matches are reordered so that peer-reviewed venues come before
// preprint servers; otherwise search order is kept in both partitions.
func Rank(title string, candidates []dblp.Candidate) (exact, others []ScoredCandidate) {
	local := reference.NormalizeTitle(title)
	for _, c := range candidates {
		sc := ScoredCandidate{Candidate: c, Score: Similarity(local, reference.NormalizeTitle(c.Title))}
		if sc.Exact() {
			exact = append(exact, sc)
		} else {
			others = append(others, sc)
		}
	}

	sort.SliceStable(exact, func(i, j int) bool {
		return !exact[i].Candidate.IsPreprint() && exact[j].Candidate.IsPreprint()
	})
	return exact, others
}
