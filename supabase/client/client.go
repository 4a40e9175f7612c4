// Package client is a Supabase client covering the three backend surfaces the
// application uses: PostgREST tables, GoTrue auth, and object storage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client

	auth    *AuthClient
	storage *StorageClient
}

// Config holds client configuration.
type Config struct {
	URL     string
	AnonKey string
	// HTTPClient overrides the default transport. Leave nil to get the
	// resilient client with retry and circuit breaking.
	HTTPClient *http.Client
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewResilientClient(DefaultRetryConfig(), DefaultBreakerConfig())
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
	}
	c.auth = newAuthClient(c)
	c.storage = &StorageClient{client: c}
	return c, nil
}

// BaseURL returns the configured project URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Auth returns the auth client. The same instance is returned on every call
// so session state and auth-change listeners are shared.
func (c *Client) Auth() *AuthClient { return c.auth }

// Storage returns the storage client.
func (c *Client) Storage() *StorageClient { return c.storage }

// ErrNoRows is returned when a single-row query matched zero or multiple rows.
var ErrNoRows = errors.New("expected row not found")

// Error is a backend rejection carrying the backend's own message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.StatusCode)
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// QueryBuilder builds PostgREST requests against one table.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters []string
	orders  []string
	limit   int
	single  bool
}

// Select specifies the columns to select. Embedded resources use the
// PostgREST join syntax, e.g. "*, contributions:crowd_funding_contributions(*)".
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=eq.%v", column, value))
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Single switches the request to single-object mode. Zero or multiple
// matching rows become ErrNoRows.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

func (q *QueryBuilder) restURL() string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)

	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	for _, f := range q.filters {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			params.Add(parts[0], parts[1])
		}
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.limit))
	}

	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Get executes a SELECT and decodes the result into dest.
func (q *QueryBuilder) Get(ctx context.Context, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.restURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req)
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}

	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	if q.single && resp.StatusCode == http.StatusNotAcceptable {
		return ErrNoRows
	}
	if err := resp.Error(); err != nil {
		return err
	}
	if dest == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Insert inserts one or more rows.
func (q *QueryBuilder) Insert(ctx context.Context, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

// Update patches the rows matching the accumulated filters and returns the
// number of rows affected.
func (q *QueryBuilder) Update(ctx context.Context, data any) (int, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("marshal row: %w", err)
	}
	return q.writeWithCount(ctx, http.MethodPatch, bytes.NewReader(body))
}

// Delete removes the rows matching the accumulated filters and returns the
// number of rows removed. Callers enforcing ownership add both the id and the
// owner column as filters and treat zero removed rows as a failure.
func (q *QueryBuilder) Delete(ctx context.Context) (int, error) {
	return q.writeWithCount(ctx, http.MethodDelete, nil)
}

func (q *QueryBuilder) writeWithCount(ctx context.Context, method string, body io.Reader) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, q.restURL(), body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Representation lets the caller observe how many rows the filters hit.
	req.Header.Set("Prefer", "return=representation")

	resp, err := q.client.do(req)
	if err != nil {
		return 0, err
	}
	if err := resp.Error(); err != nil {
		return 0, err
	}

	var rows []json.RawMessage
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &rows); err != nil {
			return 0, fmt.Errorf("decode response: %w", err)
		}
	}
	return len(rows), nil
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Error converts a failure status into *Error with the backend's message.
func (r *Response) Error() error {
	if r.StatusCode < 400 {
		return nil
	}
	var errResp struct {
		Message  string `json:"message"`
		Msg      string `json:"msg"`
		ErrorStr string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(r.Body, &errResp); err == nil {
		switch {
		case errResp.Message != "":
			msg = errResp.Message
		case errResp.Msg != "":
			msg = errResp.Msg
		case errResp.ErrorStr != "":
			msg = errResp.ErrorStr
		}
	}
	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}
	return &Error{StatusCode: r.StatusCode, Message: msg}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	token := c.auth.accessToken()
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}
