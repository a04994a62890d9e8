// Package fetch is the HTTP layer for the eCitizen portal: a polite
// client with rate limiting, counted backoff after transient failures,
// and retry on retryable responses.
package fetch

import "fmt"

// RetryableError marks a failure worth attempting again: timeouts,
// connection resets, 429s and server errors, empty bodies.
type RetryableError struct {
	URL string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable fetch failure for %s: %v", e.URL, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that repeating the request cannot fix,
// such as a 404 or a malformed URL.
type FatalError struct {
	URL string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal fetch failure for %s: %v", e.URL, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
