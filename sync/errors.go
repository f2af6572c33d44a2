// ABOUTME: Error taxonomy for the sync engine
// ABOUTME: Defines validation, persistence, network, and permanent-failure error kinds
package sync

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors used for orchestrator control flow.
var (
	// ErrSyncInProgress is returned when a sync trigger arrives while a
	// cycle is already running. Callers treat it as a no-op, not a fault.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned when a sync is requested without connectivity.
	ErrOffline = errors.New("no network connectivity")

	// ErrSyncDisabled is returned when sync is turned off in configuration.
	ErrSyncDisabled = errors.New("sync is disabled")
)

// ValidationError reports a malformed mutation payload, rejected before
// it ever reaches the queue.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid mutation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid mutation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError reports a queue or config write failure. The
// triggering operation is aborted and in-memory state rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NetworkError reports a failed remote call. Transient failures trigger
// retry with backoff rather than surfacing as fatal.
type NetworkError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying. Client errors
// other than 408/429 are not.
func (e *NetworkError) Retryable() bool {
	if e.StatusCode == 0 {
		return true // transport-level failure
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// PermanentFailure reports a queue entry dropped after exhausting its
// retries. It is surfaced to the caller, never silently discarded.
type PermanentFailure struct {
	ContactID string
	Action    string
	Attempts  int
	Err       error
}

func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("giving up on %s of contact %s after %d attempts: %v",
		e.Action, e.ContactID, e.Attempts, e.Err)
}

func (e *PermanentFailure) Unwrap() error { return e.Err }
