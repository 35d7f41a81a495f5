package router

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every *InvalidInputError.
var ErrInvalidInput = errors.New("invalid routing input")

// ErrClassifierUnavailable is matched by every *ClassifierUnavailableError.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

var errRateLimited = errors.New("classifier rate limit exceeded")

// InvalidInputError reports a prompt, stats or option the router refuses to
// route. It is the only error Route returns.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ClassifierUnavailableError wraps a failed, timed out, rate limited or
// malformed classifier call. The router absorbs it.
type ClassifierUnavailableError struct {
	Cause error
}

func (e *ClassifierUnavailableError) Error() string {
	if e.Cause == nil {
		return ErrClassifierUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrClassifierUnavailable, e.Cause)
}

func (e *ClassifierUnavailableError) Unwrap() error { return e.Cause }

func (e *ClassifierUnavailableError) Is(target error) bool {
	return target == ErrClassifierUnavailable
}

func unavailable(err error) error {
	var cu *ClassifierUnavailableError
	if errors.As(err, &cu) {
		return err
	}
	return &ClassifierUnavailableError{Cause: err}
}
