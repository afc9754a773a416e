// Package client provides an HTTP client for the RAG Lab API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/raglab/raglab/internal/analyst"
	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/recorder"
)

// Client is an HTTP client for the RAG Lab API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// Timeout is the request timeout. Query runs include LLM calls, so
	// the default is generous.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts.
	MaxIdleConns int

	// IdleConnTimeout is how long an idle connection stays open.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         120 * time.Second,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:      cfg.MaxIdleConns,
		IdleConnTimeout:   cfg.IdleConnTimeout,
		ForceAttemptHTTP2: true,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// QueryRequest asks the server to run one technique over one query.
type QueryRequest struct {
	Technique string `json:"technique"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	Evaluate  *bool  `json:"evaluate,omitempty"`
}

// QueryResult is a completed, recorded query run.
type QueryResult struct {
	ID        string            `json:"id"`
	Technique string            `json:"technique"`
	Query     string            `json:"query"`
	Answer    string            `json:"answer"`
	Sources   []recorder.Source `json:"sources"`
	Metrics   recorder.Metrics  `json:"metrics"`
	Details   map[string]any    `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TechniqueInfo describes one available technique.
type TechniqueInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UploadResult summarizes one document upload.
type UploadResult struct {
	Document   string `json:"document"`
	Chunks     int    `json:"chunks"`
	DurationMs int64  `json:"duration_ms"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// APIError is an error response from the server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health checks if the API is healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns server version information.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	var resp map[string]string
	if err := c.get(ctx, "/v1/version", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Techniques lists the available techniques.
func (c *Client) Techniques(ctx context.Context) ([]TechniqueInfo, error) {
	var resp struct {
		Techniques []TechniqueInfo `json:"techniques"`
	}
	if err := c.get(ctx, "/v1/techniques", &resp); err != nil {
		return nil, err
	}
	return resp.Techniques, nil
}

// Query runs one technique over one query and returns the recorded
// execution.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.post(ctx, "/v1/query", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListExecutions returns recorded executions matching the filter.
func (c *Client) ListExecutions(ctx context.Context, f recorder.Filter) ([]*recorder.Execution, error) {
	var resp struct {
		Executions []*recorder.Execution `json:"executions"`
	}
	if err := c.get(ctx, withQuery("/v1/executions", filterQuery(f)), &resp); err != nil {
		return nil, err
	}
	return resp.Executions, nil
}

// GetExecution returns one execution by id.
func (c *Client) GetExecution(ctx context.Context, id string) (*recorder.Execution, error) {
	var execution recorder.Execution
	if err := c.get(ctx, "/v1/executions/"+url.PathEscape(id), &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

// PurgeExecutions deletes executions matching the filter and returns
// the deleted count.
func (c *Client) PurgeExecutions(ctx context.Context, f recorder.Filter) (int64, error) {
	var resp struct {
		Purged int64 `json:"purged"`
	}
	if err := c.delete(ctx, withQuery("/v1/executions", filterQuery(f)), &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// Comparison returns the per-technique aggregate comparison.
func (c *Client) Comparison(ctx context.Context, f recorder.Filter) (*comparison.Result, error) {
	var result comparison.Result
	if err := c.get(ctx, withQuery("/v1/comparison", filterQuery(f)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadDocument uploads one document for indexing.
func (c *Client) UploadDocument(ctx context.Context, document, text string) (*UploadResult, error) {
	req := map[string]string{
		"document": document,
		"text":     text,
	}
	var result UploadResult
	if err := c.post(ctx, "/v1/documents", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Analyze asks the server for an LLM analysis of the comparison data.
// An empty question requests the overall comparative analysis.
func (c *Client) Analyze(ctx context.Context, question string) (*analyst.Analysis, error) {
	var body any
	if question != "" {
		body = map[string]string{"question": question}
	}
	var result analyst.Analysis
	if err := c.post(ctx, "/v1/analyze", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAnalyses returns saved analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, f recorder.Filter) ([]*analyst.Analysis, error) {
	var resp struct {
		Analyses []*analyst.Analysis `json:"analyses"`
	}
	if err := c.get(ctx, withQuery("/v1/analyses", filterQuery(f)), &resp); err != nil {
		return nil, err
	}
	return resp.Analyses, nil
}

// filterQuery converts a filter into URL query parameters.
func filterQuery(f recorder.Filter) url.Values {
	q := url.Values{}
	if len(f.Techniques) > 0 {
		q.Set("technique", strings.Join(f.Techniques, ","))
	}
	if f.From != nil {
		q.Set("from", f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, result)
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, result)
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, result)
}

// do executes a request and decodes the response.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return &apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
