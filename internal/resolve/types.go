package resolve

import (
	"context"
	"errors"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
)

// MaxChoices is the most candidates offered for one conflict.
const MaxChoices = 5

// ManualSearchNote is attached to entries DBLP returned nothing for.
const ManualSearchNote = "TODO: Search for this entry manually in DBLP"

// Searcher finds DBLP candidates for a title.
type Searcher interface {
	Search(ctx context.Context, title string) ([]dblp.Candidate, error)
}

// State is the phase of a workflow.
type State string

const (
	StateIdle               State = "idle"                // no batch loaded
	StateProcessing         State = "processing"          // iterating input entries
	StateConflictResolution State = "conflict_resolution" // iterating pending conflicts
	StateDone               State = "done"                // results ready for export
)

// OutcomeKind tells how an entry was (or will be) finalized.
type OutcomeKind string

const (
	OutcomeAccepted   OutcomeKind = "accepted"   // merged automatically
	OutcomeConflicted OutcomeKind = "conflicted" // waiting for a human choice
	OutcomeUnresolved OutcomeKind = "unresolved" // no candidates, annotated
	OutcomeChosen     OutcomeKind = "chosen"     // conflict resolved by choice
	OutcomeSkipped    OutcomeKind = "skipped"    // conflict skipped, original kept
)

// Outcome is the result of processing one input entry.
type Outcome struct {
	Kind  OutcomeKind     `json:"kind"`
	Index int             `json:"index"` // position in the input file
	Entry reference.Entry `json:"entry"` // merged, original or annotated entry

	// Match is the accepted candidate (OutcomeAccepted only).
	Match *ScoredCandidate `json:"match,omitempty"`

	// Candidates are the offered choices (OutcomeConflicted only).
	Candidates []ScoredCandidate `json:"candidates,omitempty"`
}

// Conflict is an entry whose candidates all fell at or below the
// auto-accept threshold.
type Conflict struct {
	Index      int               `json:"index"`
	Original   reference.Entry   `json:"original"`
	Candidates []ScoredCandidate `json:"candidates"` // search order, at most MaxChoices
}

// Finalized is an entry that will not be revisited.
type Finalized struct {
	Index int             `json:"index"`
	Kind  OutcomeKind     `json:"kind"`
	Entry reference.Entry `json:"entry"`
}

// Progress summarizes a batch.
type Progress struct {
	BatchID   string `json:"batch_id,omitempty"`
	State     State  `json:"state"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"` // input entries consumed
	Finalized int    `json:"finalized"`
	Pending   int    `json:"pending"`
}

// Workflow errors.
var (
	// ErrWrongState indicates an operation not valid in the current state.
	ErrWrongState = errors.New("operation not valid in current state")

	// ErrInvalidChoice indicates a candidate number outside 1..len(choices).
	ErrInvalidChoice = errors.New("invalid candidate choice")
)
