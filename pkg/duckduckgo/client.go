// Package duckduckgo queries the DuckDuckGo HTML endpoint, which needs no
// API key. Responses come back as raw HTML for the caller to scan; there is
// no structured result API at this endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://html.duckduckgo.com"

	// Honest bot UA. DuckDuckGo throttles faster on blank or browser UAs
	// that issue programmatic query patterns.
	defaultUserAgent = "Mozilla/5.0 (compatible; ZoneWiseBot/1.0; +https://zonewise.ai/bot)"
)

// Client defines the search operations the discovery stage uses.
type Client interface {
	// Search runs one query and returns the result page HTML. Failures
	// surface immediately; callers that try several query variants treat
	// each call as its own attempt.
	Search(ctx context.Context, query string) (string, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a DuckDuckGo HTML search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) (string, error) {
	reqURL := fmt.Sprintf("%s/html/?%s", c.baseURL, url.Values{"q": {query}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "duckduckgo: search request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "duckduckgo: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("duckduckgo: unexpected status %d", resp.StatusCode)
	}

	return string(body), nil
}
