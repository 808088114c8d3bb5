package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type staticAuthorizer string

func (a staticAuthorizer) Authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(a))
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	c, err := New(DefaultConfig(serverURL), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://api.example.com"),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      Config{UserAgent: "TestApp/1.0.0"},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "relative base url",
			config:      Config{BaseURL: "api.example.com"},
			expectError: true,
			errorMsg:    `base url must be absolute (got "api.example.com")`,
		},
		{
			name:        "negative rate limit",
			config:      Config{BaseURL: "https://api.example.com", RateLimit: -1},
			expectError: true,
			errorMsg:    "rate_limit must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, zerolog.Nop())

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(DefaultBaseURL)

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0 (unlimited)", cfg.RateLimit)
	}
}

func TestURL(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/")

	got := c.URL("/v1/reports/order-items/search/abc", url.Values{"page": []string{"2"}})
	want := "https://api.example.com/v1/reports/order-items/search/abc?page=2"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	if got := c.URL("v1/auth/token", nil); got != "https://api.example.com/v1/auth/token" {
		t.Errorf("URL() without leading slash = %q", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   ErrorClass
	}{
		{"client error 404", 404, ErrorClassClient},
		{"client error 401", 401, ErrorClassClient},
		{"rate limit 429", 429, ErrorClassRateLimit},
		{"server error 500", 500, ErrorClassServer},
		{"server error 503", 503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := classifyStatus(tt.statusCode); result != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.statusCode, result, tt.expected)
			}
		})
	}
}

func TestSend_HeadersAndAuthorizer(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	// No authorizer yet: no Authorization header
	if _, err := c.Send(context.Background(), Request{Path: "/ping"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if got.Get("Authorization") != "" {
		t.Errorf("Authorization = %q before authorizer was set", got.Get("Authorization"))
	}
	if got.Get("User-Agent") != "fever-order-sync/0.1.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}

	c.SetAuthorizer(staticAuthorizer("tok-1"))
	if _, err := c.Send(context.Background(), Request{Path: "/ping"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if got.Get("Authorization") != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", got.Get("Authorization"), "Bearer tok-1")
	}
}

func TestSend_Bodies(t *testing.T) {
	type seen struct {
		contentType string
		body        string
	}
	var last seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		last = seen{contentType: r.Header.Get("Content-Type"), body: string(b)}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()

	_, err := c.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/form",
		Form:   url.Values{"username": []string{"u"}, "password": []string{"p&q"}},
	})
	if err != nil {
		t.Fatalf("Send(form) failed: %v", err)
	}
	if last.contentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", last.contentType)
	}
	if last.body != "password=p%26q&username=u" {
		t.Errorf("form body = %q", last.body)
	}

	_, err = c.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/json",
		JSON:   map[string]any{"plan_ids": []int64{1, 2}},
	})
	if err != nil {
		t.Fatalf("Send(json) failed: %v", err)
	}
	if last.contentType != "application/json" {
		t.Errorf("Content-Type = %q", last.contentType)
	}
	if last.body != `{"plan_ids":[1,2]}` {
		t.Errorf("json body = %q", last.body)
	}
}

func TestSend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "not here", http.StatusNotFound)
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	tests := []struct {
		path      string
		status    int
		class     ErrorClass
		retryable bool
	}{
		{"/missing", 404, ErrorClassClient, false},
		{"/busy", 429, ErrorClassRateLimit, true},
		{"/broken", 502, ErrorClassServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := promtestutil.ToFloat64(errorsTotal.WithLabelValues(string(tt.class)))

			_, err := c.Send(context.Background(), Request{Path: tt.path, Endpoint: "test"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Send() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.class)
			}
			if Retryable(err) != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", Retryable(err), tt.retryable)
			}

			after := promtestutil.ToFloat64(errorsTotal.WithLabelValues(string(tt.class)))
			if after != before+1 {
				t.Errorf("fever_errors_total{class=%q} = %v, want %v", tt.class, after, before+1)
			}
		})
	}
}

func TestSend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	start := time.Now()
	_, err := c.Send(context.Background(), Request{Path: "/slow", Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassNetwork)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v should wrap context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send() took %v, timeout not applied", elapsed)
	}
}

func TestSendJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.Write([]byte(`<html>`))
			return
		}
		w.Write([]byte(`{"price": 12.50, "id": 9007199254740993}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	var out map[string]any
	if err := c.SendJSON(context.Background(), Request{Path: "/ok"}, &out); err != nil {
		t.Fatalf("SendJSON() failed: %v", err)
	}
	if n, ok := out["price"].(json.Number); !ok || n.String() != "12.50" {
		t.Errorf("price = %#v, want json.Number(12.50)", out["price"])
	}
	if n, ok := out["id"].(json.Number); !ok || n.String() != "9007199254740993" {
		t.Errorf("id = %#v, want exact literal", out["id"])
	}

	err := c.SendJSON(context.Background(), Request{Path: "/bad"}, &out)
	if ClassOf(err) != ErrorClassDecode {
		t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassDecode)
	}
}

func TestSend_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.RateLimit = 20 // one request every 50ms
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Send(context.Background(), Request{Path: "/x"}); err != nil {
			t.Fatalf("Send() failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 requests at 20 rps took %v, limiter not applied", elapsed)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := errorMessage("500 Internal Server Error", nil); got != "500 Internal Server Error" {
		t.Errorf("errorMessage() = %q", got)
	}

	long := strings.Repeat("x", maxErrorBody+10)
	got := errorMessage("400 Bad Request", []byte(long))
	if !strings.HasSuffix(got, "...") || len(got) > len("400 Bad Request: ")+maxErrorBody+3 {
		t.Errorf("errorMessage() did not truncate: len=%d", len(got))
	}
}
