package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/fever-order-sync/pkg/client"
	"github.com/Sternrassler/fever-order-sync/pkg/fields"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for polling.
var (
	pollAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fever_poll_attempts_total",
		Help: "Total number of search status polls",
	})

	pollWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fever_poll_wait_seconds",
		Help:    "Time from first poll until partition info appeared",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
	})

	pollTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fever_poll_timeouts_total",
		Help: "Total number of searches whose poll budget was exhausted",
	})
)

// PollConfig holds the polling budget.
type PollConfig struct {
	// MaxAttempts is the maximum number of status requests.
	MaxAttempts int

	// Interval is the fixed wait between attempts.
	Interval time.Duration

	// RequestTimeout bounds each status request.
	RequestTimeout time.Duration
}

// DefaultPollConfig returns the default polling budget: 60 attempts two
// seconds apart, about two minutes in total.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts:    60,
		Interval:       2 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// PollPartitions polls the job's status URL until it reports partition
// info, then records and returns the resolved partitions.
//
// Any failed status request consumes an attempt and polling continues; a
// search that is not visible yet may answer 404 or 409. Only a rejected
// token (401, 403) or context cancellation ends polling early with
// ErrPollFailed. An exhausted budget ends it with ErrPollTimeout.
func (c *Client) PollPartitions(ctx context.Context, job *Job) ([]int, error) {
	if job == nil || job.ID == "" {
		return nil, fmt.Errorf("%w: job has no search id", ErrPollFailed)
	}

	cfg := c.config.Poll
	job.State = StatePolling
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		job.Attempts = attempt
		pollAttemptsTotal.Inc()

		var status any
		err := c.api.SendJSON(ctx, client.Request{
			Method:   http.MethodGet,
			Path:     statusPath(job.ID),
			Endpoint: "search_poll",
			Timeout:  cfg.RequestTimeout,
		}, &status)

		switch {
		case err == nil:
			if entries, ok := partitionInfo(status); ok {
				parts := ResolvePartitions(entries)
				job.Partitions = parts
				job.Ready = true
				job.State = StateReady
				pollWaitSeconds.Observe(time.Since(start).Seconds())

				c.logger.Info().
					Str("search_id", job.ID).
					Int("attempt", attempt).
					Ints("partitions", parts).
					Msg("Search results ready")
				return parts, nil
			}
			c.logger.Debug().
				Str("search_id", job.ID).
				Int("attempt", attempt).
				Msg("Search still running")
		case ctx.Err() != nil:
			job.State = StateFailed
			return nil, fmt.Errorf("%w: %w", ErrPollFailed, ctx.Err())
		case rejected(err):
			job.State = StateFailed
			return nil, fmt.Errorf("%w: %w", ErrPollFailed, err)
		case client.Retryable(err):
			c.logger.Warn().
				Err(err).
				Str("search_id", job.ID).
				Int("attempt", attempt).
				Msg("Transient poll failure")
		default:
			c.logger.Debug().
				Err(err).
				Str("search_id", job.ID).
				Int("attempt", attempt).
				Msg("Search not visible yet")
		}

		// If this was the last attempt, don't wait
		if attempt >= cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			job.State = StateFailed
			return nil, fmt.Errorf("%w: %w", ErrPollFailed, ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}

	job.State = StateFailed
	pollTimeoutsTotal.Inc()
	return nil, fmt.Errorf("%w: no partition info after %d attempts", ErrPollTimeout, cfg.MaxAttempts)
}

// partitionInfo extracts a non-empty partition_info array from a status body.
func partitionInfo(status any) ([]any, bool) {
	v, ok := fields.Lookup(status, "partition_info")
	if !ok {
		return nil, false
	}
	entries, ok := v.([]any)
	if !ok || len(entries) == 0 {
		return nil, false
	}
	return entries, true
}

// rejected reports whether the API refused the bearer token.
func rejected(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
