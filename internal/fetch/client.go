package fetch

import (
	"context"
	"fmt"
	"hlstaild/internal/logger"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves the text body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// Client is the HTTP client responsible for all communication with the playlist origin.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
	// RequestTimeout bounds a single playlist request, headers and body included.
	RequestTimeout time.Duration
}

// NewClient creates a new playlist client. Redirects are followed by net/http.
func NewClient(log logger.Logger, userAgent string, requestTimeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = requestTimeout

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		logger:         log,
		userAgent:      userAgent,
		RequestTimeout: requestTimeout,
	}
}

// Fetch downloads the playlist at url and returns its body.
// Every failure is reported as a *TransportError.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &TransportError{Code: CodeUnknown, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debugf("Fetching playlist from URL: %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Code: classify(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &TransportError{Code: CodeHTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Code: classify(err), URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if final := resp.Request.URL.String(); final != url {
		c.logger.Debugf("Playlist %s served from %s", url, final)
	}
	return string(data), nil
}
