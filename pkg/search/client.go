// Package search drives the reporting API's asynchronous search protocol:
// submit a search, poll until its result partitions are known, then fetch
// every partition.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/fever-order-sync/pkg/client"
	"github.com/Sternrassler/fever-order-sync/pkg/fields"
	"github.com/Sternrassler/fever-order-sync/pkg/pagination"
	"github.com/rs/zerolog"
)

// SearchPath is the order-items search endpoint.
const SearchPath = "/v1/reports/order-items/search"

// State is the lifecycle state of a search job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateReady     State = "ready"
	StateFetched   State = "fetched"
	StateFailed    State = "failed"
)

// Job is a submitted search. Partitions are filled in once, by
// PollPartitions.
type Job struct {
	ID         string
	Partitions []int
	Ready      bool
	State      State
	Attempts   int
}

// Config holds the search client configuration.
type Config struct {
	SubmitTimeout time.Duration
	FetchTimeout  time.Duration
	Poll          PollConfig
	Pagination    pagination.Config
}

// DefaultConfig returns the default timeouts and polling budget.
func DefaultConfig() Config {
	return Config{
		SubmitTimeout: 60 * time.Second,
		FetchTimeout:  60 * time.Second,
		Poll:          DefaultPollConfig(),
		Pagination:    pagination.DefaultConfig(),
	}
}

// Client runs search jobs over an authenticated API client.
type Client struct {
	api    *client.Client
	config Config
	logger zerolog.Logger
}

// New creates a search client.
func New(api *client.Client, cfg Config, logger zerolog.Logger) *Client {
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = DefaultPollConfig().MaxAttempts
	}
	return &Client{
		api:    api,
		config: cfg,
		logger: logger.With().Str("component", "search").Logger(),
	}
}

// Submit validates the filter and starts a search.
func (c *Client) Submit(ctx context.Context, filter Filter) (*Job, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	body := filter.request()

	var resp any
	err := c.api.SendJSON(ctx, client.Request{
		Method:   http.MethodPost,
		Path:     SearchPath,
		JSON:     body,
		Endpoint: "search_submit",
		Timeout:  c.config.SubmitTimeout,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	id := fields.Get(resp, "search_id")
	if id == "" {
		return nil, fmt.Errorf("%w: no search_id in response", ErrSubmitFailed)
	}

	c.logger.Info().
		Str("search_id", id).
		Int("plan_ids", len(body.PlanIDs)).
		Str("date_field", body.DateField).
		Msg("Search submitted")

	return &Job{ID: id, State: StateSubmitted}, nil
}

// FetchAll fetches the given partitions of a ready job in ascending order
// and returns the order records in partition order. The first failing
// partition aborts the fetch.
func (c *Client) FetchAll(ctx context.Context, job *Job, partitions []int) ([]json.RawMessage, error) {
	if job == nil || !job.Ready {
		return nil, fmt.Errorf("%w: job is not ready", ErrFetchFailed)
	}

	fetcher := pagination.NewFetcher(c.PageFetcher(job), c.config.Pagination, c.logger)
	orders, err := fetcher.FetchAll(ctx, normalizePartitions(partitions))
	if err != nil {
		job.State = StateFailed
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	job.State = StateFetched
	c.logger.Info().
		Str("search_id", job.ID).
		Int("orders", len(orders)).
		Msg("Fetched orders (pre item-expansion)")

	return orders, nil
}

// PageFetcher returns a pagination.PageFetcher reading partitions of job.
func (c *Client) PageFetcher(job *Job) pagination.PageFetcher {
	return pagination.PageFetcherFunc(func(ctx context.Context, page int) ([]json.RawMessage, error) {
		return c.fetchPage(ctx, job.ID, page)
	})
}

type pageResponse struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) fetchPage(ctx context.Context, searchID string, page int) ([]json.RawMessage, error) {
	var resp pageResponse
	err := c.api.SendJSON(ctx, client.Request{
		Method:   http.MethodGet,
		Path:     statusPath(searchID),
		Query:    url.Values{"page": {strconv.Itoa(page)}},
		Endpoint: "search_fetch",
		Timeout:  c.config.FetchTimeout,
	}, &resp)
	if err != nil {
		return nil, err
	}

	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("partition %d: data is not an array: %w", page, err)
	}
	return records, nil
}

func statusPath(searchID string) string {
	return SearchPath + "/" + url.PathEscape(searchID)
}
