package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks malformed events or configuration rejected at the
// boundary. Nothing is partially applied when a validation error is returned.
var ErrValidation = errors.New("validation failed")

// ErrVersionConflict is returned when an optimistic-concurrency check fails.
// Callers resolve it by re-reading the latest state and retrying.
var ErrVersionConflict = errors.New("state version conflict")

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// TransientError marks a failed call to an external dependency (the
// text-completion service). The interaction is treated as failed; the caller
// may substitute a fallback response. Never auto-retried here.
type TransientError struct {
	Op      string
	Elapsed time.Duration
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure after %s: %v", e.Op, e.Elapsed, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Clamp bounds v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
