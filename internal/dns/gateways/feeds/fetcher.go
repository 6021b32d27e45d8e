package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haukened/rr-blocklist/internal/dns/common/log"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "rr-blocklist/1.0"

	errCreateRequest = "create request: %w"
	errDoRequest     = "do request: %w"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Fetcher downloads feed bodies over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    log.Logger
}

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Logger    log.Logger
	// injected for testing purposes
	Transport http.RoundTripper
}

// NewFetcher returns a Fetcher whose requests are bounded by opts.Timeout.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// Fetch GETs url and returns the response body. The caller closes it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf(errCreateRequest, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errDoRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	f.logger.Debug(map[string]any{
		"url":            url,
		"status":         resp.StatusCode,
		"content_length": resp.ContentLength,
	}, "feed_response")
	return resp.Body, nil
}
