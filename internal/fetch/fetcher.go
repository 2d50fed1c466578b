// Package fetch retrieves raw page content over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default fetch limits.
const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize is the largest body read from a response.
	// Longer bodies are truncated.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Fetcher retrieves the body of a URL as text.
type Fetcher interface {
	// Fetch performs a GET request for url with the given extra headers and
	// returns the response body. Non-2xx responses are errors.
	Fetch(ctx context.Context, url string, headers map[string]string) (string, error)
}

// Error is returned when a page cannot be retrieved.
// StatusCode is zero for network-level failures.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnexpectedStatus is wrapped by Error for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// HTTPFetcher implements Fetcher with an *http.Client.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request deadline.
// Zero or negative values disable the extra deadline and rely on the client.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher that uses client.
// A nil client is replaced by one with DefaultTimeout.
func NewHTTPFetcher(client *http.Client, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      client,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// Fetch implements Fetcher.
//
// Every request runs under its own deadline so a hung server cannot stall a
// crawl. Redirects are followed according to the client's policy.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return "", &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", &Error{URL: url, StatusCode: 0, Err: fmt.Errorf("read body: %w", err)}
	}

	return string(body), nil
}
