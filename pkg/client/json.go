package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GetJSON performs a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	req, err := newRequest(ctx, http.MethodGet, rawURL, header, nil)
	if err != nil {
		return err
	}
	_, err = c.doJSON(req, v)
	return err
}

// PostJSON sends body as JSON and decodes the response into v. v may be nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := newRequest(ctx, http.MethodPost, rawURL, header, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.doJSON(req, v)
	return err
}

// PostForm sends form as application/x-www-form-urlencoded and returns the
// response headers.
func (c *Client) PostForm(ctx context.Context, rawURL string, header http.Header, form url.Values) (http.Header, error) {
	req, err := newRequest(ctx, http.MethodPost, rawURL, header, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doJSON(req, nil)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, header http.Header) error {
	req, err := newRequest(ctx, http.MethodDelete, rawURL, header, nil)
	if err != nil {
		return err
	}
	_, err = c.doJSON(req, nil)
	return err
}

func newRequest(ctx context.Context, method, rawURL string, header http.Header, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// doJSON executes req, checks the status, and decodes a non-empty body into v.
func (c *Client) doJSON(req *http.Request, v any) (http.Header, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return resp.Header, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.Header, fmt.Errorf("decode response from %s: %w", req.URL.Redacted(), err)
	}
	return resp.Header, nil
}
