package calendly

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted is returned (wrapped in an *APIError) when all
// retry attempts are exhausted.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors. Retried.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents timeouts and connection failures.
	// Retried. APIError.StatusCode is 0 for this class.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is the single typed error surfaced for Calendly API
// failures. StatusCode is 0 for pure network failures.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("calendly %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("calendly %s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("calendly %s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// retryable reports whether a failed attempt should be retried.
// Timeouts, connection failures and 5xx responses are transient;
// 4xx responses are surfaced immediately.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class != ErrorClassClient
	}
	return true
}

// classOf extracts the error class from err, defaulting to network.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// statusOf extracts the HTTP status code from err, 0 when unknown.
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
