package mesh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for report fetches.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// DefaultMaxReportBytes limits a fetched report to 50 MB.
	DefaultMaxReportBytes = 50 << 20
)

// ErrReportTooLarge is returned when a fetched report exceeds the size limit.
// A truncated report would otherwise parse into a silently smaller map.
var ErrReportTooLarge = errors.New("scanner report exceeds size limit")

// StatusError is a non-200 response from the report endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP GET %s: status %d", e.URL, e.StatusCode)
}

// Temporary reports whether a retry could succeed: server errors, 408 and 429.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

// FetchOption configures FetchScanners behavior.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	maxBytes    int64
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		maxBytes:    DefaultMaxReportBytes,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay for exponential backoff between retries.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.baseBackoff = d
	}
}

// WithMaxReportBytes sets the largest report body accepted.
func WithMaxReportBytes(n int64) FetchOption {
	return func(c *fetchConfig) {
		c.maxBytes = n
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// IsRemoteInput reports whether input names an HTTP(S) location.
func IsRemoteInput(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// LoadScanners reads scanner reports from a local file or, for http(s)
// inputs, from a remote endpoint.
func LoadScanners(ctx context.Context, input string, opts ...FetchOption) ([]*Scanner, error) {
	if IsRemoteInput(input) {
		return FetchScanners(ctx, input, opts...)
	}
	return ParseScannerFile(input)
}

// FetchScanners downloads a scanner report and parses it. Transport failures,
// server errors, 408 and 429 are retried with exponential backoff. Other
// client errors, oversized reports and malformed reports fail immediately.
func FetchScanners(ctx context.Context, url string, opts ...FetchOption) ([]*Scanner, error) {
	if url == "" {
		return nil, errors.New("fetch scanners: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := range cfg.maxRetries {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch scanners: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := doFetch(ctx, client, url, cfg.maxBytes)
		if err != nil {
			if !retryable(err) {
				return nil, fmt.Errorf("fetch scanners: %w", err)
			}
			log.Printf("[FETCH] attempt %d/%d failed: %v", attempt+1, cfg.maxRetries, err)
			lastErr = err
			continue
		}

		scanners, err := ParseScanners(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("fetch scanners: %w", err)
		}
		return scanners, nil
	}

	return nil, fmt.Errorf("fetch scanners: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, ErrReportTooLarge) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}

// doFetch performs a single HTTP GET and returns the response body bytes.
// One byte past maxBytes is read so an oversized body is reported rather
// than truncated.
func doFetch(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%s declares %d bytes, limit %d: %w", url, resp.ContentLength, maxBytes, ErrReportTooLarge)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%s: more than %d bytes: %w", url, maxBytes, ErrReportTooLarge)
	}

	return body, nil
}
