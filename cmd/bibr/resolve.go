package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/bibresolve/internal/bibtex"
	"github.com/matsen/bibresolve/internal/resolve"
)

// Interactive prompt commands besides a candidate number
const (
	choiceSkip  = "s"
	choiceDefer = "d"
	choiceQuit  = "q"
)

var (
	resolveOutput        string
	resolveSkipConflicts bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "Output BibTeX file (default from config, processed.bib)")
	resolveCmd.Flags().BoolVar(&resolveSkipConflicts, "skip-conflicts", false, "Keep original entries for ambiguous matches instead of prompting")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve FILE",
	Short: "Resolve every entry of a BibTeX file against DBLP",
	Long: `Resolve every entry of a BibTeX file against DBLP.

Each entry's title is searched on DBLP. A candidate whose title is nearly
identical is merged automatically, preferring published versions over CoRR
preprints. When only weaker candidates are found you choose one of up to
five, skip (keep the original), or defer the decision. Entries with no
candidates get a note asking for a manual search.

Prompts are only shown on a terminal; otherwise ambiguous entries are
skipped.

Examples:
  bibr resolve refs.bib
  bibr resolve refs.bib -o clean.bib --human
  bibr resolve refs.bib --skip-conflicts`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	cfg := mustLoadConfig()

	outputPath := resolveOutput
	if outputPath == "" {
		outputPath = cfg.OutputFile
	}

	entries, err := bibtex.ParseFile(inputPath)
	if err != nil {
		var parseErr bibtex.ParseError
		if errors.As(err, &parseErr) || errors.Is(err, os.ErrNotExist) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := newClient(cfg)
	merger := resolve.NewMerger(client, logger.Named("merge"))
	wf := resolve.NewWorkflow(client, merger, logger.Named("workflow"))
	batchID := wf.Load(entries)

	if humanOutput {
		outputHuman("Resolving %d entries from %s\n", len(entries), inputPath)
	}
	total := len(entries)
	err = wf.Run(ctx, func(o resolve.Outcome) {
		if humanOutput {
			outputHuman("%s\n", describeOutcome(o, total))
		}
	})
	if err != nil {
		exitWithError(ExitError, "resolving: %v", err)
	}

	if wf.State() == resolve.StateConflictResolution {
		p := &conflictPrompter{out: os.Stdout}
		if !resolveSkipConflicts && isTerminal(os.Stdin) {
			p.in = bufio.NewReader(os.Stdin)
		}
		if err := p.resolveAll(ctx, wf); err != nil {
			exitWithError(ExitError, "resolving conflicts: %v", err)
		}
	}

	results, err := wf.Results()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := os.WriteFile(outputPath, []byte(bibtex.FormatList(results)), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", outputPath, err)
	}

	summary := summarize(wf.Finalized())
	summary.BatchID = batchID
	summary.Input = inputPath
	summary.Output = outputPath

	if humanOutput {
		outputHuman("\n%s\n", renderTable(
			[]string{"Outcome", "Entries"},
			[][]string{
				{"accepted", strconv.Itoa(summary.Accepted)},
				{"chosen", strconv.Itoa(summary.Chosen)},
				{"skipped", strconv.Itoa(summary.Skipped)},
				{"unresolved", strconv.Itoa(summary.Unresolved)},
			},
			[]columnAlignment{alignLeft, alignRight},
		))
		outputHuman("Wrote %d entries to %s\n", summary.Total, outputPath)
		return nil
	}
	return outputJSON(summary)
}

// describeOutcome formats one processing step for human output.
func describeOutcome(o resolve.Outcome, total int) string {
	prefix := fmt.Sprintf("[%d/%d] %s:", o.Index+1, total, o.Entry.Key)
	switch o.Kind {
	case resolve.OutcomeAccepted:
		return fmt.Sprintf("%s matched %q (%.2f)", prefix, o.Match.Candidate.Title, o.Match.Score)
	case resolve.OutcomeConflicted:
		return fmt.Sprintf("%s %d possible matches, decide later", prefix, len(o.Candidates))
	default:
		return fmt.Sprintf("%s not found on DBLP", prefix)
	}
}

// conflictPrompter asks the user to settle pending conflicts. With a nil
// reader every conflict is skipped.
type conflictPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// promptAction is a parsed prompt answer.
type promptAction int

const (
	actionChoose promptAction = iota
	actionSkip
	actionDefer
	actionQuit
)

// parseChoice interprets one line of prompt input for a conflict with n
// candidates.
func parseChoice(input string, n int) (promptAction, int, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	switch input {
	case choiceSkip:
		return actionSkip, 0, nil
	case choiceDefer:
		return actionDefer, 0, nil
	case choiceQuit:
		return actionQuit, 0, nil
	}

	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > n {
		return 0, 0, fmt.Errorf("enter 1-%d, %s to skip, %s to defer or %s to skip all remaining",
			n, choiceSkip, choiceDefer, choiceQuit)
	}
	return actionChoose, choice, nil
}

// resolveAll drives the workflow until no conflicts remain.
func (p *conflictPrompter) resolveAll(ctx context.Context, wf *resolve.Workflow) error {
	if p.in == nil {
		return skipRemaining(wf)
	}

	for {
		c, ok := wf.Current()
		if !ok {
			return nil
		}

		fmt.Fprintf(p.out, "\n%d conflict(s) remaining. Entry %s:\n  %q\n",
			len(wf.Pending()), c.Original.Key, c.Original.Title())
		fmt.Fprintln(p.out, candidateTable(c.Candidates))

		action, choice, err := p.ask(len(c.Candidates))
		if err != nil {
			return err
		}

		switch action {
		case actionChoose:
			if _, err := wf.Choose(ctx, choice); err != nil {
				return err
			}
		case actionSkip:
			if _, err := wf.Skip(); err != nil {
				return err
			}
		case actionDefer:
			if err := wf.Defer(); err != nil {
				return err
			}
		case actionQuit:
			return skipRemaining(wf)
		}
	}
}

// ask reads answers until one parses. End of input skips all remaining.
func (p *conflictPrompter) ask(n int) (promptAction, int, error) {
	for {
		fmt.Fprintf(p.out, "Choice [1-%d/%s/%s/%s]: ", n, choiceSkip, choiceDefer, choiceQuit)
		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, 0, fmt.Errorf("reading input: %w", err)
		}
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			fmt.Fprintln(p.out)
			return actionQuit, 0, nil
		}

		action, choice, perr := parseChoice(line, n)
		if perr == nil {
			return action, choice, nil
		}
		fmt.Fprintf(p.out, "Invalid choice. Please %v.\n", perr)
		if errors.Is(err, io.EOF) {
			return actionQuit, 0, nil
		}
	}
}

// skipRemaining keeps the original entry for every pending conflict.
func skipRemaining(wf *resolve.Workflow) error {
	for wf.State() == resolve.StateConflictResolution {
		if _, err := wf.Skip(); err != nil {
			return err
		}
	}
	return nil
}
