package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/matsen/bibresolve/internal/dblp"
	"github.com/matsen/bibresolve/internal/resolve"
)

// Truncation lengths by context
const (
	TableTitleMaxLen  = 60 // Candidate title column
	TableAuthorMaxLen = 40 // Candidate authors column
	TableVenueMaxLen  = 25 // Candidate venue column
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResolveSummary is the response for the resolve command.
type ResolveSummary struct {
	BatchID    string `json:"batch_id"`
	Input      string `json:"input"`
	Output     string `json:"output"`
	Total      int    `json:"total"`
	Accepted   int    `json:"accepted"`
	Chosen     int    `json:"chosen"`
	Skipped    int    `json:"skipped"`
	Unresolved int    `json:"unresolved"`
}

// summarize counts finalized records by outcome.
func summarize(records []resolve.Finalized) ResolveSummary {
	var s ResolveSummary
	s.Total = len(records)
	for _, r := range records {
		switch r.Kind {
		case resolve.OutcomeAccepted:
			s.Accepted++
		case resolve.OutcomeChosen:
			s.Chosen++
		case resolve.OutcomeSkipped:
			s.Skipped++
		case resolve.OutcomeUnresolved:
			s.Unresolved++
		}
	}
	return s
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query      string                    `json:"query"`
	Normalized string                    `json:"normalized"`
	Count      int                       `json:"count"`
	Candidates []resolve.ScoredCandidate `json:"candidates"`
}

// FetchResponse is the response for the fetch command.
type FetchResponse struct {
	URL    string `json:"url"`
	BibTeX string `json:"bibtex"`
}

// NormalizeResult pairs a title with its normalized form.
type NormalizeResult struct {
	Title      string `json:"title"`
	Normalized string `json:"normalized"`
}

// candidateTable renders scored candidates as a numbered table.
func candidateTable(candidates []resolve.ScoredCandidate) string {
	rows := make([][]string, 0, len(candidates))
	for i, sc := range candidates {
		c := sc.Candidate
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", sc.Score),
			truncateForDisplay(c.Title, TableTitleMaxLen),
			truncateForDisplay(authorsForDisplay(c.Authors), TableAuthorMaxLen),
			truncateForDisplay(c.Venue, TableVenueMaxLen),
			c.Year,
		})
	}
	return renderTable(
		[]string{"#", "Score", "Title", "Authors", "Venue", "Year"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	)
}

func authorsForDisplay(a dblp.Authors) string {
	if !a.Present() {
		return ""
	}
	return a.String()
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// truncateForDisplay truncates a string to maxLen runes, adding "..." if truncated.
func truncateForDisplay(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
