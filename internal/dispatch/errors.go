package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass categorizes a provider failure and drives fallback behavior.
type ErrorClass string

// Failure classes, in rough order of severity.
const (
	// ClassAuthentication means bad or missing credentials. Fatal: the
	// dispatcher surfaces it immediately without trying other providers,
	// since they likely share the same misconfiguration.
	ClassAuthentication ErrorClass = "authentication"

	// ClassRateLimited means the provider returned 429. The dispatcher
	// waits a fixed backoff, then tries the next provider.
	ClassRateLimited ErrorClass = "rate-limited"

	// ClassServer means a 5xx response. The next provider is tried
	// immediately.
	ClassServer ErrorClass = "server"

	// ClassNetwork means a transport failure (connection reset, timeout).
	// The next provider is tried immediately.
	ClassNetwork ErrorClass = "network"

	// ClassMalformed means a success status with an unparseable or empty
	// body. Treated like ClassServer for fallback purposes.
	ClassMalformed ErrorClass = "malformed-response"
)

// Common errors returned by the dispatch package
var (
	// ErrNoProviders is returned when Dispatch is called with an empty
	// provider list.
	ErrNoProviders = errors.New("no providers configured")

	// ErrAuthentication is the sentinel wrapped by authentication-class
	// failures.
	ErrAuthentication = errors.New("provider authentication failed")
)

// ClassifiedError is a provider failure annotated with its class. Provider
// adapters normalize every failure into this shape before the dispatcher
// sees it.
type ClassifiedError struct {
	Class    ErrorClass
	Provider string
	Err      error
}

// Error implements the error interface for ClassifiedError.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("provider %s failed (%s): %v", e.Provider, e.Class, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the dispatcher should fall back to the next
// provider after this failure.
func (e *ClassifiedError) Retryable() bool {
	return e.Class != ClassAuthentication
}

// NewClassifiedError creates a ClassifiedError for the given provider.
func NewClassifiedError(class ErrorClass, provider string, err error) *ClassifiedError {
	return &ClassifiedError{
		Class:    class,
		Provider: provider,
		Err:      err,
	}
}

// ClassifyStatus maps an HTTP status code to an ErrorClass. It is shared by
// HTTP-shaped provider adapters.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == 401 || status == 403:
		return ClassAuthentication
	case status == 429:
		return ClassRateLimited
	case status >= 500:
		return ClassServer
	default:
		// Other 4xx codes indicate a request the provider will never
		// accept; treat like a server-side rejection so the next
		// provider gets a chance.
		return ClassServer
	}
}

// ExhaustionError is returned when every provider in the list has failed.
// It carries each provider's classified failure so the caller can decide
// between fixing credentials and retrying later.
type ExhaustionError struct {
	Failures []*ClassifiedError
}

// Error implements the error interface for ExhaustionError.
func (e *ExhaustionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s (%v)", f.Provider, f.Class, f.Err))
	}
	return fmt.Sprintf("all providers exhausted: [%s]", strings.Join(parts, "; "))
}
