package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var partitionsFetched = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fever_partitions_fetched_total",
	Help: "Total number of search partitions fetched successfully",
})

// Config holds fetcher configuration.
type Config struct {
	// ProgressEvery logs a progress line after this many partitions.
	ProgressEvery int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		ProgressEvery: 10,
	}
}

// PageFetcher fetches the records of a single partition.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]json.RawMessage, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) ([]json.RawMessage, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) ([]json.RawMessage, error) {
	return f(ctx, page)
}

// PageError reports which partition failed.
type PageError struct {
	Page    int
	Fetched int
	Err     error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("fetch partition %d (after %d partitions): %v", e.Page, e.Fetched, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}

// Fetcher fetches partitions sequentially.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewFetcher creates a new sequential partition fetcher.
func NewFetcher(fetcher PageFetcher, config Config, logger zerolog.Logger) *Fetcher {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 10
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll fetches every page in the given order and concatenates the
// records. The first failure aborts the walk and is returned as a
// *PageError; no partial result is returned with it.
func (f *Fetcher) FetchAll(ctx context.Context, pages []int) ([]json.RawMessage, error) {
	start := time.Now()
	var records []json.RawMessage

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, &PageError{Page: page, Fetched: i, Err: err}
		}

		data, err := f.fetcher.FetchPage(ctx, page)
		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("page", page).
				Int("fetched_pages", i).
				Int("total_pages", len(pages)).
				Msg("Partition fetch failed")
			return nil, &PageError{Page: page, Fetched: i, Err: err}
		}

		records = append(records, data...)
		partitionsFetched.Inc()

		f.logger.Debug().
			Int("page", page).
			Int("records", len(data)).
			Msg("Partition fetched")

		if done := i + 1; done%f.config.ProgressEvery == 0 && done < len(pages) {
			f.logger.Info().
				Int("fetched", done).
				Int("total", len(pages)).
				Float64("progress_pct", float64(done)/float64(len(pages))*100).
				Msg("Fetch progress")
		}
	}

	f.logger.Info().
		Int("pages", len(pages)).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}
