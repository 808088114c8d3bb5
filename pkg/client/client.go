// Package client provides the HTTP core for the reporting API: base URL
// resolution, per-request timeouts, bearer authorization, rate limiting,
// error classification and request metrics.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for reporting API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fever_requests_total",
		Help: "Total reporting API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fever_request_duration_seconds",
		Help:    "Reporting API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fever_errors_total",
		Help: "Total reporting API errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the production reporting API host.
const DefaultBaseURL = "https://data-reporting-api.prod.feverup.com"

// maxErrorBody bounds how much of a failed response body is kept in an APIError.
const maxErrorBody = 256

// Authorizer decorates outgoing requests with credentials.
type Authorizer interface {
	Authorize(req *http.Request)
}

// Client is the reporting API HTTP client. It is not safe for concurrent
// use; a sync run owns exactly one.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	authorizer Authorizer
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the scheme and host of the reporting API.
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size (default 1).
	Burst int

	// HTTPClient overrides the transport (for testing). Timeouts are applied
	// per request through the context, not through http.Client.Timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "fever-order-sync/0.1.0",
		RateLimit: 0,
		Burst:     1,
	}
}

// Request describes a single API call.
type Request struct {
	Method string

	// Path is joined onto the base URL, e.g. "/v1/auth/token".
	Path  string
	Query url.Values

	// At most one of Form and JSON is set.
	Form url.Values
	JSON any

	// Endpoint is a low-cardinality name used for metrics and logs.
	Endpoint string

	// Timeout bounds the whole exchange including reading the body.
	Timeout time.Duration
}

// New creates a new API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNoBaseURL
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		limiter:    rate.NewLimiter(limit, burst),
		config:     cfg,
		logger:     logger.With().Str("component", "api-client").Logger(),
	}, nil
}

// SetAuthorizer installs the authorizer applied to every subsequent request.
func (c *Client) SetAuthorizer(a Authorizer) {
	c.authorizer = a
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Send performs the request and returns the response body. Any non-2xx
// status, transport failure or timeout is returned as an *APIError.
func (c *Client) Send(ctx context.Context, r Request) ([]byte, error) {
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = r.Path
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(endpoint, 0, ErrorClassNetwork, "rate limiter wait", err)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, c.fail(endpoint, 0, ErrorClassNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, c.fail(endpoint, resp.StatusCode, ErrorClassNetwork, "read body", err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		return nil, c.fail(endpoint, resp.StatusCode, errClass, errorMessage(resp.Status, body), nil)
	}

	return body, nil
}

// SendJSON performs the request and decodes the JSON response into out.
// Numbers are decoded as json.Number so their literal text survives.
func (c *Client) SendJSON(ctx context.Context, r Request, out any) error {
	body, err := c.Send(ctx, r)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		endpoint := r.Endpoint
		if endpoint == "" {
			endpoint = r.Path
		}
		return c.fail(endpoint, http.StatusOK, ErrorClassDecode, "decode response", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(r.Path, r.Query), body)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.authorizer != nil {
		c.authorizer.Authorize(req)
	}
	return req, nil
}

// fail records the error metric and builds the APIError.
func (c *Client) fail(endpoint string, status int, errClass ErrorClass, msg string, cause error) error {
	errorsTotal.WithLabelValues(string(errClass)).Inc()

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", status).
		Str("error_class", string(errClass)).
		AnErr("cause", cause).
		Msg("API request error")

	return &APIError{
		Endpoint:   endpoint,
		StatusCode: status,
		ErrorClass: errClass,
		Message:    msg,
		Err:        cause,
	}
}

// classifyStatus categorizes a non-2xx status for observability and retry policy.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func errorMessage(status string, body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		return status
	}
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody] + "..."
	}
	return status + ": " + snippet
}
