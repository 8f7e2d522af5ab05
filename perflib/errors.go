package perflib

import (
	"errors"
	"fmt"
)

// FatalError marks a condition the benchmark cannot continue from: engine or
// poller bring-up failure, or a cold-start failure before even one
// connection of a kind succeeded. It unwinds out of the worker loop and the
// binary translates it into exit code 1. Per-connection transient errors are
// never wrapped in it.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalf(format string, args ...interface{}) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
