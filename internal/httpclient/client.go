// Package httpclient issues single outbound JSON requests. Every call opens
// its own request, buffers the full response and checks that it is JSON.
package httpclient

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
)

// Request describes one outbound call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Response is a buffered upstream reply whose body is known to be valid JSON.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// TransportError wraps a failure to reach the upstream or read its reply.
type TransportError struct {
	Method string
	Host   string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s%s: %v", e.Method, e.Host, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports an upstream body that is not valid JSON.
type MalformedResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (status %d): %s", e.StatusCode, preview(e.Body))
}

// Client sends requests to a single upstream host.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL (scheme and host, e.g.
// https://onesignal.com). A zero timeout leaves calls unbounded.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends req and returns the status code with the raw JSON body. Any
// status is returned as a Response; interpreting it is up to the caller.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(method, req.Path, fmt.Errorf("read response: %w", err))
	}

	if !json.Valid(respBody) {
		return nil, &MalformedResponseError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// transportError drops the query string from the reported path since it may
// carry credentials.
func (c *Client) transportError(method, path string, err error) error {
	// url.Error repeats the full URL, query included.
	if uerr, ok := err.(*url.Error); ok {
		err = uerr.Err
	}
	return &TransportError{Method: method, Host: c.baseURL, Path: path, Err: err}
}

func preview(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
