// Package agentql talks to the hosted browser automation service that runs
// AgentQL extractions against county portals the direct pipeline cannot
// read. The service drives a real browser, so calls take minutes and the
// client carries a circuit breaker to keep batch runs from queueing behind
// an outage.
package agentql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

// DefaultQuery is the AgentQL selector for a county zoning table. The
// service maps matched rows into districts, standards, and permitted uses.
const DefaultQuery = `{
  zoning_table {
    district_code
    district_name
    uses_permitted[]
    setback_front
    setback_side
    setback_rear
    max_height
  }
}`

// Client defines the browser automation operations the pipeline uses.
type Client interface {
	ScrapeCounty(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// ScrapeRequest is the body for POST /scrape-county.
type ScrapeRequest struct {
	CountySlug   string `json:"county_slug"`
	CoNo         int    `json:"co_no"`
	PortalURL    string `json:"portal_url"`
	AntiScrape   bool   `json:"anti_scrape"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
	Query        string `json:"agentql_query"`
}

// ScrapeResponse is the response from POST /scrape-county. Data arrives in
// the same shape the direct extraction path produces.
type ScrapeResponse struct {
	Data    model.ExtractedData `json:"data"`
	Records int                 `json:"records"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agentql: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithBreakerConfig overrides the circuit breaker settings.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// NewClient creates a client for the automation service at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     2 * time.Minute,
			// Only outages trip the breaker; a 4xx for one county says
			// nothing about the next.
			ShouldTrip: resilience.IsTransient,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ScrapeCounty(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	if req.Query == "" {
		req.Query = DefaultQuery
	}

	resp, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*ScrapeResponse, error) {
		return c.post(ctx, "/scrape-county", req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "agentql: scrape county "+req.CountySlug)
	}
	return resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any) (*ScrapeResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var out ScrapeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "decode response")
	}
	return &out, nil
}
