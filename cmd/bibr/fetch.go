package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/bibresolve/internal/dblp"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Print the canonical BibTeX of a DBLP record",
	Long: `Print the canonical BibTeX of a DBLP record.

URL is a record page such as https://dblp.org/rec/conf/nips/VaswaniSPUJGKP17;
the BibTeX export at /rec/bibtex/ is downloaded.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	client := newClient(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	text, err := client.FetchBibTeX(ctx, args[0])
	if err != nil {
		if dblp.IsNotFound(err) {
			exitWithError(ExitAPIError, "record not found: %s", args[0])
		}
		exitWithError(ExitAPIError, "fetching record: %v", err)
	}

	if humanOutput {
		outputHuman("%s", text)
		return nil
	}
	return outputJSON(FetchResponse{URL: dblp.BibTeXURL(args[0]), BibTeX: text})
}
