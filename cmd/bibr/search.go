package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/reference"
	"github.com/matsen/bibresolve/internal/resolve"
)

var searchLimit int

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum candidates to request (default from config)")
}

var searchCmd = &cobra.Command{
	Use:   "search TITLE...",
	Short: "Search DBLP for a title and score the candidates",
	Long: `Search DBLP for a title and show how each candidate scores.

Candidates scoring above 0.8 would be merged automatically by 'bibr resolve'.

Examples:
  bibr search "Attention is all you need"
  bibr search --limit 10 --human deep residual learning`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if searchLimit > 0 {
		cfg.ResultLimit = searchLimit
	}
	title := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Single queries do not need the pause between searches.
	client := dblp.NewClient(append(cfg.ClientOptions(),
		dblp.WithLogger(logger.Named("dblp")),
		dblp.WithCourtesyDelay(0),
	)...)
	candidates, err := client.Search(ctx, title)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	exact, others := resolve.Rank(title, candidates)
	scored := append(exact, others...)

	if humanOutput {
		if len(scored) == 0 {
			outputHuman("No candidates found on DBLP.\n")
			return nil
		}
		outputHuman("%s\n", candidateTable(scored))
		if len(exact) > 0 {
			outputHuman("Best match: %s\n", exact[0].Candidate.URL)
		}
		return nil
	}

	if scored == nil {
		scored = []resolve.ScoredCandidate{}
	}
	return outputJSON(SearchResponse{
		Query:      title,
		Normalized: reference.NormalizeTitle(title),
		Count:      len(scored),
		Candidates: scored,
	})
}
