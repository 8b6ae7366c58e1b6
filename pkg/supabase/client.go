// Package supabase is a minimal PostgREST client for the Supabase tables the
// pipeline reads and writes. It speaks the REST interface directly rather
// than going through the database, so the same service role key works from
// CI, laptops, and the scheduled batch jobs.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/resilience"
)

// Row is a single record as PostgREST returns it. Column types follow
// encoding/json defaults: strings, float64, bool, nested maps.
type Row map[string]any

// Client defines the relational store operations the pipeline uses.
type Client interface {
	// Select returns the rows matching params, e.g.
	// {"county": "ilike.%brevard%", "select": "id,name"}.
	Select(ctx context.Context, table string, params url.Values) ([]Row, error)

	// Insert adds one record and returns it as stored.
	Insert(ctx context.Context, table string, record Row) (Row, error)

	// Upsert inserts records, merging with existing rows on the onConflict
	// columns (comma-separated). Returns the affected rows.
	Upsert(ctx context.Context, table string, records []Row, onConflict string) ([]Row, error)

	// Update patches all rows matching params and returns them.
	Update(ctx context.Context, table string, params url.Values, patch Row) ([]Row, error)

	// RPC calls a Postgres function exposed through PostgREST.
	RPC(ctx context.Context, fn string, args Row) (json.RawMessage, error)
}

// APIError is returned when PostgREST responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRetryConfig overrides the retry behavior for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string // project URL, e.g. https://abc.supabase.co
	key     string // service role key
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a client for the Supabase project at baseURL.
func NewClient(baseURL, serviceKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     serviceKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Select(ctx context.Context, table string, params url.Values) ([]Row, error) {
	data, err := c.do(ctx, http.MethodGet, c.tableURL(table, params), nil, "")
	if err != nil {
		return nil, eris.Wrap(err, "supabase: select "+table)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: select "+table)
	}
	return rows, nil
}

func (c *httpClient) Insert(ctx context.Context, table string, record Row) (Row, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: marshal record")
	}
	data, err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), body, "return=representation")
	if err != nil {
		return nil, eris.Wrap(err, "supabase: insert "+table)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: insert "+table)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *httpClient) Upsert(ctx context.Context, table string, records []Row, onConflict string) ([]Row, error) {
	if len(records) == 0 {
		return []Row{}, nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: marshal records")
	}
	params := url.Values{"on_conflict": {onConflict}}
	data, err := c.do(ctx, http.MethodPost, c.tableURL(table, params), body,
		"resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, eris.Wrap(err, "supabase: upsert "+table)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: upsert "+table)
	}
	return rows, nil
}

func (c *httpClient) Update(ctx context.Context, table string, params url.Values, patch Row) ([]Row, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: marshal patch")
	}
	data, err := c.do(ctx, http.MethodPatch, c.tableURL(table, params), body, "return=representation")
	if err != nil {
		return nil, eris.Wrap(err, "supabase: update "+table)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: update "+table)
	}
	return rows, nil
}

func (c *httpClient) RPC(ctx context.Context, fn string, args Row) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, eris.Wrap(err, "supabase: marshal args")
	}
	data, err := c.do(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+fn, body, "")
	if err != nil {
		return nil, eris.Wrap(err, "supabase: rpc "+fn)
	}
	return json.RawMessage(data), nil
}

func (c *httpClient) tableURL(table string, params url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do executes one REST call with retry on transient failures. The request
// is rebuilt per attempt so the body reader is always fresh.
func (c *httpClient) do(ctx context.Context, method, rawURL string, body []byte, prefer string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Content-Type", "application/json")
		if prefer != "" {
			req.Header.Set("Prefer", prefer)
		}

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
		return data, nil
	})
}

// decodeRows parses a PostgREST array response. Empty and null bodies
// decode to no rows, which PostgREST produces for writes that matched
// nothing.
func decodeRows(data []byte) ([]Row, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Row{}, nil
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "decode rows")
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}
