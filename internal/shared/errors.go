package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying import failures. Wrap them with context via
// fmt.Errorf("...: %w", Err...) so callers can branch with errors.Is.
var (
	// ErrInput indicates malformed or missing payload data for one product.
	ErrInput = errors.New("invalid input")
	// ErrIllegalValue indicates a select/multiselect label with no matching
	// option while option creation is disallowed.
	ErrIllegalValue = errors.New("illegal attribute value")
	// ErrState indicates the catalog is in a state the operation cannot
	// proceed from (wrong product type, missing child, occupied path).
	ErrState = errors.New("invalid state")
	// ErrNotFound indicates a missing entity (sku, store, attribute).
	ErrNotFound = errors.New("not found")
)

// BatchAbort stops processing of the remaining products in a batch. It is
// raised when the illegal-value policy is skip_batch.
type BatchAbort struct {
	Cause error
}

func (e *BatchAbort) Error() string {
	return fmt.Sprintf("batch aborted: %v", e.Cause)
}

func (e *BatchAbort) Unwrap() error { return e.Cause }

// AbortBatch wraps err so the orchestrator halts the whole batch.
func AbortBatch(err error) error {
	return &BatchAbort{Cause: err}
}

// IsBatchAbort reports whether err carries a batch-abort signal.
func IsBatchAbort(err error) bool {
	var ba *BatchAbort
	return errors.As(err, &ba)
}
