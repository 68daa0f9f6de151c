// Package errors provides centralized error definitions for the pipeline.
// Errors are organized by domain to avoid duplication and provide
// consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Validation errors. These are fatal at enqueue time and never retried.
var (
	// ErrMissingTenant indicates a raw item arrived without a tenant identity.
	ErrMissingTenant = errors.New("missing tenant identity")

	// ErrInvalidItem indicates a malformed raw item shape.
	ErrInvalidItem = errors.New("invalid raw item")
)

// Persistence errors.
var (
	// ErrDuplicateItem indicates an item with the same (tenant, fingerprint)
	// is already stored. A normal terminal condition, not a failure.
	ErrDuplicateItem = errors.New("duplicate item")

	// ErrItemNotFound indicates a stored item could not be found.
	ErrItemNotFound = errors.New("item not found")
)

// Queue errors.
var (
	// ErrQueueClosed indicates the queue no longer accepts work.
	ErrQueueClosed = errors.New("queue closed")

	// ErrNoWork indicates no claimable item is pending.
	ErrNoWork = errors.New("no pending work")
)

// Adapter errors.
var (
	// ErrAdapterUnavailable indicates an enrichment adapter is not configured.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrCircuitBreakerOpen indicates the adapter circuit breaker has tripped.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an adapter returned an empty response.
	ErrEmptyResponse = errors.New("empty response")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
