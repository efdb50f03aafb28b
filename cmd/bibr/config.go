package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/bibresolve/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration.

Settings come from built-in defaults, then the config file
(~/.config/bibresolve/config.yml, or $BIBR_CONFIG), then the environment:

  BIBR_SEARCH_URL       DBLP search endpoint
  BIBR_RESULT_LIMIT     candidates requested per search
  BIBR_MAX_RETRIES      attempts per search
  BIBR_COURTESY_DELAY   pause after each search (e.g. 2s)
  BIBR_REQUEST_TIMEOUT  HTTP timeout (e.g. 10s)

A .env file in the working directory is loaded first.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Path string `json:"path"`
	*config.Config
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	path := config.GlobalConfigPath()

	if humanOutput {
		outputHuman("config file:     %s\n", path)
		outputHuman("search_url:      %s\n", cfg.SearchURL)
		outputHuman("result_limit:    %d\n", cfg.ResultLimit)
		outputHuman("max_retries:     %d\n", cfg.MaxRetries)
		outputHuman("retry_after:     %s\n", cfg.RetryAfter)
		outputHuman("courtesy_delay:  %s\n", cfg.CourtesyDelay)
		outputHuman("request_timeout: %s\n", cfg.RequestTimeout)
		outputHuman("canonical_rate:  %g/s\n", cfg.CanonicalRate)
		outputHuman("output_file:     %s\n", cfg.OutputFile)
		return nil
	}
	return outputJSON(ConfigResponse{Path: path, Config: cfg})
}
