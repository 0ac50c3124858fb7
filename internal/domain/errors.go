package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnknownBond  = errors.New("bond not configured")
	ErrNoYields     = errors.New("observation has no yield values")
	ErrNoReport     = errors.New("no report found")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrLockHeld     = errors.New("lock already held")
)

// SourceError classifies a source adapter failure. The retry policy treats
// retryable and permanent failures identically; the flag exists so logs and
// notifications name the class.
type SourceError struct {
	Op        string // operation that failed, e.g. "terminal fetch"
	Retryable bool
	Err       error
}

// NewTransient wraps err as a retryable source failure.
func NewTransient(op string, err error) *SourceError {
	return &SourceError{Op: op, Retryable: true, Err: err}
}

// NewPermanent wraps err as a non-retryable source failure.
func NewPermanent(op string, err error) *SourceError {
	return &SourceError{Op: op, Retryable: false, Err: err}
}

func (e *SourceError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsRetryable reports the classification of err when it carries one. Errors
// without a classification default to retryable, matching the uniform retry
// behavior.
func IsRetryable(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}
