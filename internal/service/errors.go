package service

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError reports a malformed request. Its message is safe to return to callers.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

var ErrStoreUnavailable = errors.New("booking store unavailable")

// StoreFailure marks err as a store outage the caller may retry later.
func StoreFailure(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrStoreUnavailable)
}
