/*
errors.go - Error kinds for the aggregation pipeline

ERROR CATEGORIES:
  1. Validation errors - malformed punch pairing; skipped per item
  2. Transient errors  - store conflicts/timeouts; retried per chunk
  3. Configuration errors - invalid settings; fatal before job start

Store implementations wrap conflict/timeout failures with ErrTransientStore
so the chunk runner can tell a retryable write failure from a permanent one.
*/
package attendance

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPunchPair is returned for malformed punch pairings, such as
	// an "out" recorded before its "in". The offending item is skipped.
	ErrInvalidPunchPair = errors.New("invalid punch pair")

	// ErrTransientStore marks store failures worth retrying (write
	// conflicts, busy database, timeouts).
	ErrTransientStore = errors.New("transient store failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidPunchPairError carries the pairing that failed validation.
type InvalidPunchPairError struct {
	UserID UserID
	Date   time.Time
	Reason string
}

func (e *InvalidPunchPairError) Error() string {
	return fmt.Sprintf("invalid punch pair for %s on %s: %s",
		e.UserID, e.Date.Format("2006-01-02"), e.Reason)
}

func (e *InvalidPunchPairError) Unwrap() error { return ErrInvalidPunchPair }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTransient returns true if the error might succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// IsValidation returns true if the error is a per-item data problem that
// should be skipped rather than retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPunchPair)
}
