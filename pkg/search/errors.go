package search

import "errors"

// Terminal failures of a search job. Stage errors wrap one of these and
// the underlying cause, so errors.Is matches either.
var (
	// ErrSubmitFailed is returned when a search cannot be started.
	ErrSubmitFailed = errors.New("search submit failed")

	// ErrPollTimeout is returned when no poll attempt within the budget
	// reported partition info.
	ErrPollTimeout = errors.New("timed out waiting for search results")

	// ErrPollFailed is returned when polling hits a non-retryable error
	// or the context ends.
	ErrPollFailed = errors.New("search poll failed")

	// ErrFetchFailed is returned when a partition cannot be fetched.
	ErrFetchFailed = errors.New("partition fetch failed")
)
