package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/bibresolve/internal/reference"
)

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize TITLE...",
	Short: "Show titles as they are compared and searched",
	Long: `Show titles as they are compared and searched.

Braces are removed, dashes become spaces, text is lowercased and anything
other than letters, digits and spaces is dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

func runNormalize(cmd *cobra.Command, args []string) error {
	results := normalizeTitles(args)
	if humanOutput {
		for _, r := range results {
			outputHuman("%s\n", r.Normalized)
		}
		return nil
	}
	return outputJSON(results)
}

func normalizeTitles(titles []string) []NormalizeResult {
	out := make([]NormalizeResult, 0, len(titles))
	for _, t := range titles {
		out = append(out, NormalizeResult{Title: t, Normalized: reference.NormalizeTitle(t)})
	}
	return out
}
