package rchan

import (
	"errors"
	"strconv"
)

// Sentinel errors for the board-watch engine, shared across layers per
// the error taxonomy in spec.md Section 7.
var (
	// ErrTransport signals the underlying HTTP transport failed (I/O error,
	// connection refused, timeout). Retryable by getWithRetry.
	ErrTransport = errors.New("transport error")

	// ErrInvalidResponse signals a decoded body that did not match the
	// expected endpoint variant, or a 304 with no cached payload to replay.
	// Fatal to the current call. A board worker stops when its
	// threads-summary fetch returns it; a failed per-thread fetch is
	// rolled back and retried like any other error.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrMaxRetriesExceeded signals the retry cap was reached without a
	// successful response.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrAlreadySubscribed is returned by Subscribe when the board already
	// has a live worker.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrBoardNotFound is returned by Subscribe when the board does not
	// appear in the upstream board list.
	ErrBoardNotFound = errors.New("board not found")
)

// StatusError represents a non-2xx, non-304 HTTP response from upstream.
// 404 is non-retryable; all other codes are retryable (spec.md Section 4.4).
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return "status code " + strconv.Itoa(e.Code)
}

// HTTPStatus returns the status code, satisfying the httpStatusError
// interface consumed by internal/circuitbreaker's classifier.
func (e *StatusError) HTTPStatus() int { return e.Code }

// Retryable reports whether getWithRetry should attempt this call again.
// 404 is the sole non-retryable status (spec.md Section 4.4 step 6).
func (e *StatusError) Retryable() bool { return e.Code != 404 }
