// Package api is a typed HTTP client for the opencode server.
//
// The server exposes sessions, path resolution, config resources, a health
// check and an SSE event stream. Every response is parsed into an explicit
// struct at the boundary; payloads that don't match surface as
// *MalformedResponseError instead of silently defaulting fields.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Client talks to a single opencode server.
//
// The server resolves directory-relative requests against an "active
// directory" the client declares up front; SetActiveDirectory records it
// locally and attaches it to requests that are scoped that way.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu              sync.RWMutex
	activeDirectory string
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return NewWithClient(baseURL, &http.Client{Timeout: defaultHTTPTimeout})
}

// NewWithClient creates a client with a custom http.Client (for testing).
func NewWithClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetActiveDirectory declares the directory the server should resolve
// directory-relative requests against.
func (c *Client) SetActiveDirectory(dir string) {
	c.mu.Lock()
	c.activeDirectory = dir
	c.mu.Unlock()
}

// ActiveDirectory returns the last directory declared via SetActiveDirectory.
func (c *Client) ActiveDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeDirectory
}

// MalformedResponseError reports a response body that could not be parsed
// into the endpoint's expected shape.
type MalformedResponseError struct {
	Endpoint string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Code, e.Body)
	}
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Code)
}

// do issues a request and decodes the JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &MalformedResponseError{Endpoint: path, Err: err}
	}
	return nil
}

// directoryQuery builds a ?directory= query, falling back to the active
// directory when dir is empty.
func (c *Client) directoryQuery(dir string) url.Values {
	if dir == "" {
		dir = c.ActiveDirectory()
	}
	q := url.Values{}
	if dir != "" {
		q.Set("directory", dir)
	}
	return q
}
