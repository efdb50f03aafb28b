package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matsen/bibresolve/internal/reference"
)

// batch holds all progress for one input file.
type batch struct {
	id        string
	entries   []reference.Entry
	cursor    int // next input entry to process
	finalized []Finalized
	pending   []Conflict
	current   int // pending conflict presented to the user
}

// Workflow drives one batch through processing and conflict resolution.
// It is not safe for concurrent use; searches run one at a time.
type Workflow struct {
	searcher Searcher
	merger   *Merger
	logger   *zap.Logger
	state    State
	batch    *batch
}

// NewWorkflow creates an idle workflow.
func NewWorkflow(searcher Searcher, merger *Merger, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if merger == nil {
		merger = NewMerger(nil, logger)
	}
	return &Workflow{
		searcher: searcher,
		merger:   merger,
		logger:   logger,
		state:    StateIdle,
	}
}

// Load starts a new batch over entries and returns its ID. Any previous
// batch is discarded. The entries are copied.
func (w *Workflow) Load(entries []reference.Entry) string {
	b := &batch{
		id:      uuid.NewString(),
		entries: make([]reference.Entry, len(entries)),
	}
	for i, e := range entries {
		b.entries[i] = e.Clone()
	}

	w.batch = b
	w.state = StateProcessing
	w.logger.Info("batch loaded", zap.String("batch", b.id), zap.Int("entries", len(entries)))
	w.finishProcessingIfDone()
	return b.id
}

// Reset discards all batch state and returns to idle.
func (w *Workflow) Reset() {
	if w.batch != nil {
		w.logger.Info("batch reset", zap.String("batch", w.batch.id))
	}
	w.batch = nil
	w.state = StateIdle
}

// State returns the current phase.
func (w *Workflow) State() State {
	return w.state
}

// Advance processes the next input entry.
//
// The entry is searched and scored. A candidate above the threshold is
// merged and finalized; otherwise a non-empty result is queued as a
// conflict; an empty result finalizes the entry with ManualSearchNote.
// An error leaves the cursor in place so the entry can be retried.
func (w *Workflow) Advance(ctx context.Context) (Outcome, error) {
	if w.state != StateProcessing {
		return Outcome{}, fmt.Errorf("%w: advance during %s", ErrWrongState, w.state)
	}

	b := w.batch
	idx := b.cursor
	entry := b.entries[idx].Clone()
	log := w.logger.With(zap.String("batch", b.id), zap.String("key", entry.Key), zap.Int("index", idx))

	outcome, err := w.process(ctx, idx, entry)
	if err != nil {
		return Outcome{}, err
	}

	switch outcome.Kind {
	case OutcomeConflicted:
		b.pending = append(b.pending, Conflict{Index: idx, Original: entry, Candidates: outcome.Candidates})
		log.Info("queued for manual choice", zap.Int("candidates", len(outcome.Candidates)))
	default:
		b.finalized = append(b.finalized, Finalized{Index: idx, Kind: outcome.Kind, Entry: outcome.Entry})
		log.Info("entry finalized", zap.String("outcome", string(outcome.Kind)))
	}

	b.cursor++
	w.finishProcessingIfDone()
	return outcome, nil
}

func (w *Workflow) process(ctx context.Context, idx int, entry reference.Entry) (Outcome, error) {
	title := entry.Title()
	if strings.TrimSpace(title) == "" {
		return Outcome{Kind: OutcomeUnresolved, Index: idx, Entry: Annotate(entry)}, nil
	}

	candidates, err := w.searcher.Search(ctx, title)
	if err != nil {
		return Outcome{}, fmt.Errorf("searching %q: %w", entry.Key, err)
	}

	exact, others := Rank(title, candidates)
	switch {
	case len(exact) > 0:
		best := exact[0]
		return Outcome{
			Kind:  OutcomeAccepted,
			Index: idx,
			Entry: w.merger.Merge(ctx, entry, best.Candidate),
			Match: &best,
		}, nil

	case len(others) > 0:
		if len(others) > MaxChoices {
			others = others[:MaxChoices]
		}
		return Outcome{Kind: OutcomeConflicted, Index: idx, Entry: entry, Candidates: others}, nil

	default:
		return Outcome{Kind: OutcomeUnresolved, Index: idx, Entry: Annotate(entry)}, nil
	}
}

// Run advances until every input entry is consumed, calling onOutcome
// after each one when it is non-nil.
func (w *Workflow) Run(ctx context.Context, onOutcome func(Outcome)) error {
	for w.state == StateProcessing {
		outcome, err := w.Advance(ctx)
		if err != nil {
			return err
		}
		if onOutcome != nil {
			onOutcome(outcome)
		}
	}
	return nil
}

// Current returns the conflict awaiting a decision.
func (w *Workflow) Current() (Conflict, bool) {
	if w.state != StateConflictResolution {
		return Conflict{}, false
	}
	return w.batch.pending[w.batch.current], true
}

// Pending returns the queued conflicts in order.
func (w *Workflow) Pending() []Conflict {
	if w.batch == nil {
		return nil
	}
	return append([]Conflict(nil), w.batch.pending...)
}

// Choose merges the current conflict's original with candidate number
// choice (1-based) and finalizes it.
func (w *Workflow) Choose(ctx context.Context, choice int) (reference.Entry, error) {
	c, ok := w.Current()
	if !ok {
		return reference.Entry{}, fmt.Errorf("%w: choose during %s", ErrWrongState, w.state)
	}
	if choice < 1 || choice > len(c.Candidates) {
		return reference.Entry{}, fmt.Errorf("%w: %d (expected 1-%d)", ErrInvalidChoice, choice, len(c.Candidates))
	}

	merged := w.merger.Merge(ctx, c.Original, c.Candidates[choice-1].Candidate)
	w.finalizeCurrent(OutcomeChosen, merged)
	return merged, nil
}

// Skip finalizes the current conflict with its unmerged original entry.
func (w *Workflow) Skip() (reference.Entry, error) {
	c, ok := w.Current()
	if !ok {
		return reference.Entry{}, fmt.Errorf("%w: skip during %s", ErrWrongState, w.state)
	}
	w.finalizeCurrent(OutcomeSkipped, c.Original)
	return c.Original, nil
}

// Defer moves to the next pending conflict, wrapping around, so the current
// one can be revisited later.
func (w *Workflow) Defer() error {
	if w.state != StateConflictResolution {
		return fmt.Errorf("%w: defer during %s", ErrWrongState, w.state)
	}
	b := w.batch
	b.current = (b.current + 1) % len(b.pending)
	return nil
}

// Results returns the finalized entries in input order. Only valid once
// the workflow is done.
func (w *Workflow) Results() ([]reference.Entry, error) {
	if w.state != StateDone {
		return nil, fmt.Errorf("%w: results during %s", ErrWrongState, w.state)
	}
	out := make([]reference.Entry, 0, len(w.batch.finalized))
	for _, f := range w.Finalized() {
		out = append(out, f.Entry)
	}
	return out, nil
}

// Finalized returns finalized records sorted by input position.
func (w *Workflow) Finalized() []Finalized {
	if w.batch == nil {
		return nil
	}
	out := append([]Finalized(nil), w.batch.finalized...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Progress reports counts for the current batch.
func (w *Workflow) Progress() Progress {
	p := Progress{State: w.state}
	if b := w.batch; b != nil {
		p.BatchID = b.id
		p.Total = len(b.entries)
		p.Processed = b.cursor
		p.Finalized = len(b.finalized)
		p.Pending = len(b.pending)
	}
	return p
}

func (w *Workflow) finalizeCurrent(kind OutcomeKind, entry reference.Entry) {
	b := w.batch
	c := b.pending[b.current]
	b.finalized = append(b.finalized, Finalized{Index: c.Index, Kind: kind, Entry: entry})
	b.pending = append(b.pending[:b.current], b.pending[b.current+1:]...)

	w.logger.Info("conflict finalized",
		zap.String("batch", b.id),
		zap.String("key", c.Original.Key),
		zap.String("outcome", string(kind)),
		zap.Int("remaining", len(b.pending)))

	if len(b.pending) == 0 {
		b.current = 0
		w.state = StateDone
		return
	}
	if b.current >= len(b.pending) {
		b.current = 0
	}
}

func (w *Workflow) finishProcessingIfDone() {
	b := w.batch
	if w.state != StateProcessing || b.cursor < len(b.entries) {
		return
	}
	if len(b.pending) == 0 {
		w.state = StateDone
	} else {
		w.state = StateConflictResolution
		b.current = 0
	}
	w.logger.Info("processing complete",
		zap.String("batch", b.id),
		zap.Int("finalized", len(b.finalized)),
		zap.Int("conflicts", len(b.pending)))
}

// Annotate returns a copy of e with ManualSearchNote added to its note.
func Annotate(e reference.Entry) reference.Entry {
	out := e.Clone()
	if note := out.Get(reference.FieldNote); note != "" {
		out.Set(reference.FieldNote, note+". "+ManualSearchNote)
	} else {
		out.Set(reference.FieldNote, ManualSearchNote)
	}
	return out
}
