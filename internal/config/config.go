// Package config handles bibresolve configuration: built-in defaults, an
// optional YAML file and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/bibresolve/internal/dblp"
)

// DefaultOutputFile is the name of the exported bibliography.
const DefaultOutputFile = "processed.bib"

// Environment variables that override the config file.
const (
	EnvConfigPath     = "BIBR_CONFIG"
	EnvSearchURL      = "BIBR_SEARCH_URL"
	EnvResultLimit    = "BIBR_RESULT_LIMIT"
	EnvMaxRetries     = "BIBR_MAX_RETRIES"
	EnvCourtesyDelay  = "BIBR_COURTESY_DELAY"
	EnvRequestTimeout = "BIBR_REQUEST_TIMEOUT"
)

// Config holds resolver settings. Keys missing from the config file keep
// their defaults; keys present are taken as written, zero included.
type Config struct {
	SearchURL      string   `yaml:"search_url,omitempty" json:"search_url"`
	ResultLimit    int      `yaml:"result_limit,omitempty" json:"result_limit"`
	MaxRetries     int      `yaml:"max_retries,omitempty" json:"max_retries"`
	RetryAfter     Duration `yaml:"retry_after,omitempty" json:"retry_after"`
	CourtesyDelay  Duration `yaml:"courtesy_delay,omitempty" json:"courtesy_delay"`
	RequestTimeout Duration `yaml:"request_timeout,omitempty" json:"request_timeout"`
	CanonicalRate  float64  `yaml:"canonical_rate,omitempty" json:"canonical_rate"`
	OutputFile     string   `yaml:"output_file,omitempty" json:"output_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SearchURL:      dblp.BaseURL,
		ResultLimit:    dblp.DefaultLimit,
		MaxRetries:     dblp.DefaultMaxRetries,
		RetryAfter:     Duration(dblp.DefaultRetryAfter),
		CourtesyDelay:  Duration(dblp.DefaultCourtesyDelay),
		RequestTimeout: Duration(dblp.DefaultTimeout),
		CanonicalRate:  dblp.DefaultCanonicalRate,
		OutputFile:     DefaultOutputFile,
	}
}

// Validate rejects settings the client cannot work with. Zero is allowed
// for retry_after and courtesy_delay and means no wait.
func (c *Config) Validate() error {
	switch {
	case c.SearchURL == "":
		return fmt.Errorf("search_url must not be empty")
	case c.ResultLimit < 1:
		return fmt.Errorf("result_limit must be at least 1, got %d", c.ResultLimit)
	case c.MaxRetries < 1:
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	case c.RetryAfter < 0:
		return fmt.Errorf("retry_after must not be negative, got %s", c.RetryAfter)
	case c.CourtesyDelay < 0:
		return fmt.Errorf("courtesy_delay must not be negative, got %s", c.CourtesyDelay)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	case c.CanonicalRate <= 0:
		return fmt.Errorf("canonical_rate must be positive, got %g", c.CanonicalRate)
	case c.OutputFile == "":
		return fmt.Errorf("output_file must not be empty")
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read via getenv.
// Unset or empty variables leave the setting alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvSearchURL); v != "" {
		c.SearchURL = v
	}
	if v := getenv(EnvResultLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvResultLimit, err)
		}
		c.ResultLimit = n
	}
	if v := getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetries, err)
		}
		c.MaxRetries = n
	}
	if v := getenv(EnvCourtesyDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCourtesyDelay, err)
		}
		c.CourtesyDelay = Duration(d)
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = Duration(d)
	}
	return c.Validate()
}

// ClientOptions converts the settings into DBLP client options.
func (c *Config) ClientOptions() []dblp.ClientOption {
	return []dblp.ClientOption{
		dblp.WithBaseURL(c.SearchURL),
		dblp.WithLimit(c.ResultLimit),
		dblp.WithMaxRetries(c.MaxRetries),
		dblp.WithDefaultRetryAfter(c.RetryAfter.Std()),
		dblp.WithCourtesyDelay(c.CourtesyDelay.Std()),
		dblp.WithTimeout(c.RequestTimeout.Std()),
		dblp.WithCanonicalRate(c.CanonicalRate),
	}
}

// Duration is a time.Duration written as "30s" in YAML and JSON.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts Go duration strings ("2s") or bare seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if secs, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
