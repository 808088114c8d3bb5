package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body is not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// ErrNoBaseURL is returned by New when the configuration has no base URL.
var ErrNoBaseURL = errors.New("base url is required")

// APIError describes a failed reporting API request.
type APIError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s error (status %d) on %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("api %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the error class carried by err, or "" if err is not an
// *APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// Retryable reports whether a failed request may succeed if repeated.
// Client errors are final; everything transient is retryable.
func Retryable(err error) bool {
	return shouldRetry(ClassOf(err))
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx: the request itself is wrong, repeating it cannot help
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork, ErrorClassDecode:
		return true
	default:
		return false
	}
}
