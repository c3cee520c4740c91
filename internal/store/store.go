package store

import (
	"context"
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested key does not exist in the store.
	ErrNotFound = errors.New("key not found")

	// ErrStorageFailure is returned when the underlying backend fails.
	// Callers should treat it as non-fatal where feasible (log and
	// continue), except on explicit save operations.
	ErrStorageFailure = errors.New("storage operation failed")
)

// Store is the key-value artifact store contract. It supports only
// whole-value operations and prefix listing: no partial updates, no
// transactions. Concurrent writers follow last-writer-wins semantics.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the value under key. Removing a missing key is not
	// an error.
	Remove(ctx context.Context, key string) error

	// ListByPrefix returns all keys that start with prefix.
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// StoreError carries context about a failed store operation.
type StoreError struct {
	Operation string // The operation that failed (e.g., "get", "set")
	Key       string // The key involved
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation on key %q failed: %v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError for the given operation and key.
func NewStoreError(operation, key string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}
