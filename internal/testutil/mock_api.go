// Package testutil provides testing utilities for the reporting API client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Reporting API paths served by the mock.
const (
	TokenPath  = "/v1/auth/token"
	SearchPath = "/v1/reports/order-items/search"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// SearchScenario scripts one asynchronous search job.
type SearchScenario struct {
	SearchID string

	// Polls are returned in order for status requests without a page
	// parameter; the last one repeats once exhausted.
	Polls []MockResponse

	// Pages maps a partition number to its fetch response. Unknown pages
	// return 404.
	Pages map[int]MockResponse
}

// MockAPI is a configurable mock reporting API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
	polls    map[string]int
}

// NewMockAPI creates a new mock reporting API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		polls:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		handler, exists := mock.handlers[handlerKey(r.Method, r.URL.Path)]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeResponse(w, MockResponse{StatusCode: http.StatusNotFound, Body: `{"detail":"Not Found"}`})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests and poll counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.polls = make(map[string]int)
}

// SetHandler sets a custom handler for a method and path.
func (m *MockAPI) SetHandler(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[handlerKey(method, path)] = handler
}

// SetResponse configures a fixed response for a method and path.
func (m *MockAPI) SetResponse(method, path string, resp MockResponse) {
	m.SetHandler(method, path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetToken makes the token endpoint issue token.
func (m *MockAPI) SetToken(token string) {
	m.SetResponse(http.MethodPost, TokenPath, NewJSONResponse(map[string]string{"access_token": token}))
}

// SetSearch configures the submit endpoint and the status endpoint of one job.
func (m *MockAPI) SetSearch(s SearchScenario) {
	m.SetResponse(http.MethodPost, SearchPath, NewJSONResponse(map[string]string{"search_id": s.SearchID}))

	statusPath := SearchPath + "/" + s.SearchID
	m.SetHandler(http.MethodGet, statusPath, func(w http.ResponseWriter, r *http.Request) {
		if page := r.URL.Query().Get("page"); page != "" {
			n, err := strconv.Atoi(page)
			resp, ok := s.Pages[n]
			if err != nil || !ok {
				writeResponse(w, MockResponse{StatusCode: http.StatusNotFound, Body: `{"detail":"no such page"}`})
				return
			}
			writeResponse(w, resp)
			return
		}

		m.mu.Lock()
		i := m.polls[s.SearchID]
		m.polls[s.SearchID]++
		m.mu.Unlock()

		if len(s.Polls) == 0 {
			writeResponse(w, NewJSONResponse(map[string]any{}))
			return
		}
		if i >= len(s.Polls) {
			i = len(s.Polls) - 1
		}
		writeResponse(w, s.Polls[i])
	})
}

// Requests returns a copy of all recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns how many requests hit method and path.
func (m *MockAPI) RequestCount(method, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// PollCount returns the number of status requests without a page parameter.
func (m *MockAPI) PollCount(searchID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.polls[searchID]
}

// FetchedPages returns the page parameters of fetch requests in arrival order.
func (m *MockAPI) FetchedPages(searchID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pages []string
	for _, r := range m.requests {
		if r.Path == SearchPath+"/"+searchID && r.Query.Get("page") != "" {
			pages = append(pages, r.Query.Get("page"))
		}
	}
	return pages
}

// NewJSONResponse creates a 200 OK response with v encoded as JSON.
func NewJSONResponse(v any) MockResponse {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal response: %v", err))
	}
	return NewRawResponse(string(b))
}

// NewRawResponse creates a 200 OK response with a literal JSON body.
func NewRawResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewPendingPoll is a status response for a job that is still running.
func NewPendingPoll() MockResponse {
	return NewRawResponse(`{"status":"RUNNING"}`)
}

// NewReadyPoll is a status response announcing the given partition entries.
func NewReadyPoll(partitionInfo string) MockResponse {
	return NewRawResponse(`{"partition_info":` + partitionInfo + `}`)
}

// NewPage is a fetch response carrying the given orders array.
func NewPage(data string) MockResponse {
	return NewRawResponse(`{"data":` + data + `}`)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"detail": "Invalid credentials"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func handlerKey(method, path string) string {
	return method + " " + path
}
