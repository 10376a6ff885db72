package loader

import (
	"errors"
	"fmt"
	"time"
)

// ErrLoadFailure matches every error returned by Loader.Load.
var ErrLoadFailure = errors.New("dataset load failed")

// ErrNoResponses is the cause of a load whose export has no data rows.
var ErrNoResponses = errors.New("export has no responses")

// LoadError wraps the cause of a failed load together with the source it came from.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "load failed"
	}
	if e.Source != "" {
		return fmt.Sprintf("load %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("load: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoadFailure }

// StatusError is a non-2xx response from the spreadsheet export endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*StatusError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.StatusError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.StatusError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.StatusError }

// UnreachableError indicates the source host could not be reached at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("source unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("source unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
