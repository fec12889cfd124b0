// Package testutil provides a configurable mock REST API for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request the mock server received.
type RecordedRequest struct {
	Method     string
	RequestURI string
	Header     http.Header
	Body       string
}

// MockAPI is a configurable mock REST API server. Handlers are keyed by path.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI creates and starts a mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method:     r.Method,
			RequestURI: r.URL.RequestURI(),
			Header:     r.Header.Clone(),
			Body:       string(body),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error": "no handler for %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Client returns an HTTP client wired to the mock server.
func (m *MockAPI) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestURIs returns the path and query of every recorded request.
func (m *MockAPI) RequestURIs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uris := make([]string, len(m.requests))
	for i, r := range m.requests {
		uris[i] = r.RequestURI
	}
	return uris
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// SetLinkedPages serves pages on path in the Bitbucket style: page N is
// requested as path?page=N and announces the absolute URL of page N+1 in
// linkField, or null on the last page. Page 1 is also served without a query.
func (m *MockAPI) SetLinkedPages(path, linkField, itemField string, pages [][]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if p := r.URL.Query().Get("page"); p != "" {
			parsed, err := strconv.Atoi(p)
			if err != nil || parsed < 1 || parsed > len(pages) {
				http.Error(w, `{"error": "bad page"}`, http.StatusBadRequest)
				return
			}
			n = parsed
		}

		body := map[string]any{itemField: pageItems(pages, n)}
		if n < len(pages) {
			body[linkField] = fmt.Sprintf("%s%s?page=%d", m.URL(), path, n+1)
		} else {
			body[linkField] = nil
		}
		WriteJSON(w, http.StatusOK, body)
	})
}

// SetTokenPages serves pages on path in the CircleCI style: page N+1 is
// requested with tokenParam=tok-N+1 and page N carries "tok-N+1" in
// tokenField, or null on the last page.
func (m *MockAPI) SetTokenPages(path, tokenField, tokenParam, itemField string, pages [][]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if tok := r.URL.Query().Get(tokenParam); tok != "" {
			parsed, err := strconv.Atoi(strings.TrimPrefix(tok, "tok-"))
			if err != nil || parsed < 1 || parsed > len(pages) {
				http.Error(w, `{"error": "bad token"}`, http.StatusBadRequest)
				return
			}
			n = parsed
		}

		body := map[string]any{itemField: pageItems(pages, n)}
		if n < len(pages) {
			body[tokenField] = fmt.Sprintf("tok-%d", n+1)
		} else {
			body[tokenField] = nil
		}
		WriteJSON(w, http.StatusOK, body)
	})
}

func pageItems(pages [][]map[string]any, n int) []map[string]any {
	if len(pages) == 0 {
		return []map[string]any{}
	}
	items := pages[n-1]
	if items == nil {
		return []map[string]any{}
	}
	return items
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewCacheableResponse creates a 200 OK response with an ETag and max-age.
func NewCacheableResponse(body, etag string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"ETag":          etag,
			"Cache-Control": "max-age=300",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with exhausted rate limit headers.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "30",
		},
	}
}

// NewConditionalHandler responds 304 when If-None-Match equals etag.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=300")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
