package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a whole feed request when the context has no deadline.
	DefaultTimeout = 10 * time.Second

	// MaxFeedBytes caps how much of a feed body is read.
	MaxFeedBytes = 4 << 20

	defaultUserAgent = "racetrack/1.1"
)

var ErrFeedTooLarge = errors.New("feed body too large")

// Feed is a raw feed response.
type Feed struct {
	ContentType string
	Body        []byte
}

// FetcherConfig holds configuration for creating a Fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// Fetcher downloads score feeds over HTTP GET.
// Safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
}

// NewFetcher accepts a zero config and fills in defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = MaxFeedBytes
	}
	return &Fetcher{
		client:    &http.Client{Transport: cfg.Transport},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
}

// Fetch performs a GET against url. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Feed, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Feed{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Feed{}, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Feed{}, fmt.Errorf("fetching feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Feed{}, fmt.Errorf("reading feed: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return Feed{}, ErrFeedTooLarge
	}

	return Feed{ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}
