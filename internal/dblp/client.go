package dblp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matsen/bibresolve/internal/reference"
)

const (
	// BaseURL is the DBLP publication search endpoint.
	BaseURL = "https://dblp.org/search/publ/api"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultLimit is the number of hits requested per search.
	DefaultLimit = 5

	// DefaultMaxRetries bounds attempts per search, rate-limit waits included.
	DefaultMaxRetries = 5

	// DefaultRetryAfter is used when a 429 response carries no Retry-After.
	DefaultRetryAfter = 30 * time.Second

	// DefaultCourtesyDelay is the pause after every successful search.
	DefaultCourtesyDelay = 2 * time.Second

	// DefaultCanonicalRate caps BibTeX record fetches per second.
	DefaultCanonicalRate = 1.0

	// maxRecordBytes bounds the size of a fetched BibTeX record.
	maxRecordBytes = 1 << 20

	userAgent = "bibresolve/1 (+https://github.com/matsen/bibresolve)"
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client queries DBLP. Every successful search is followed by a courtesy
// pause and 429 responses are honored, so callers should search one title
// at a time.
type Client struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	baseURL       string
	limit         int
	maxRetries    int
	retryAfter    time.Duration
	courtesyDelay time.Duration
	timeout       time.Duration // applied to a copy of httpClient
	logger        *zap.Logger
	sleep         Sleeper
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom search endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLimit sets the number of hits requested per search.
func WithLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithMaxRetries sets the number of attempts per search.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithDefaultRetryAfter sets the wait used when a 429 has no Retry-After.
func WithDefaultRetryAfter(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryAfter = d
	}
}

// WithCourtesyDelay sets the pause after each successful search.
func WithCourtesyDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.courtesyDelay = d
	}
}

// WithCanonicalRate sets the BibTeX record fetch rate in requests per second.
func WithCanonicalRate(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger used for retry and fallback warnings.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSleeper replaces the pause implementation (for testing).
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// NewClient creates a new DBLP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		limiter:       rate.NewLimiter(rate.Limit(DefaultCanonicalRate), 1),
		baseURL:       BaseURL,
		limit:         DefaultLimit,
		maxRetries:    DefaultMaxRetries,
		retryAfter:    DefaultRetryAfter,
		courtesyDelay: DefaultCourtesyDelay,
		logger:        zap.NewNop(),
		sleep:         sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// Search looks up a title and returns up to the configured number of
// candidates.
//
// Rate-limit responses wait for the server-specified duration and consume
// one attempt. Other failures are logged and retried. When attempts run out
// the result is empty, not an error: the caller treats it as "no matches".
// The only error returned is cancellation of ctx.
func (c *Client) Search(ctx context.Context, title string) ([]Candidate, error) {
	query := reference.NormalizeTitle(title)
	log := c.logger.With(zap.String("query", query))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		candidates, err := c.searchOnce(ctx, query)
		if err == nil {
			log.Debug("search complete", zap.Int("hits", len(candidates)), zap.Duration("pause", c.courtesyDelay))
			// Self-throttle; a cancellation here surfaces on the next call.
			_ = c.sleep(ctx, c.courtesyDelay)
			return candidates, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err

		if wait, ok := RetryAfter(err); ok {
			log.Warn("rate limited by DBLP, waiting",
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxRetries))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		log.Warn("error accessing DBLP, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries))
	}

	log.Warn("giving up on DBLP search", zap.Int("attempts", c.maxRetries), zap.Error(lastErr))
	return []Candidate{}, nil
}

// searchOnce performs a single search request.
func (c *Client) searchOnce(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("h", strconv.Itoa(c.limit))

	reqURL := c.baseURL + "?" + params.Encode()
	resp, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, c.retryAfter); err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: parsing search results: %v", ErrInvalidResponse, err)
	}

	hits := sr.Result.Hits.Hit
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, h.Info)
	}
	return candidates, nil
}

// FetchBibTeX downloads the canonical BibTeX text for a DBLP record URL.
// It makes a single attempt. A body mentioning "not found" is reported as
// ErrNotFound.
func (c *Client) FetchBibTeX(ctx context.Context, recordURL string) (string, error) {
	bibURL := BibTeXURL(recordURL)
	if bibURL == "" {
		return "", fmt.Errorf("%w: empty record URL", ErrNotFound)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.get(ctx, bibURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, c.retryAfter); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.URL = bibURL
		}
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading record: %v", ErrNetworkError, err)
	}

	text := string(body)
	if strings.Contains(strings.ToLower(text), "not found") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, bibURL)
	}
	return text, nil
}

func (c *Client) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return resp, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, defaultWait time.Duration) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "too many requests",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), defaultWait, time.Now()),
		}
	}
	if resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Missing or unreadable values fall back to def.
func parseRetryAfter(header string, def time.Duration, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}

// sleepContext waits for d, returning early with ctx.Err() on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
