package store

import "errors"

var (
	ErrConflict            = errors.New("booking overlaps a live booking")
	ErrNotFound            = errors.New("record not found")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")
	// ErrReleased is returned when a reused booking id names a hold that no longer holds its slot.
	ErrReleased = errors.New("booking was already released")
	// ErrStaleState is returned by guarded writes when the row is no longer in the expected state.
	ErrStaleState = errors.New("stale booking state")
	// ErrTransient marks failures worth retrying: serialization failures, deadlocks, lost connections.
	ErrTransient = errors.New("transient store failure")
)

type transientError struct {
	cause error
}

func (e *transientError) Error() string        { return ErrTransient.Error() + ": " + e.cause.Error() }
func (e *transientError) Unwrap() error        { return e.cause }
func (e *transientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err so that errors.Is(err, ErrTransient) holds while the cause stays reachable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}
