package dispatch

import (
	"errors"
	"fmt"
)

// ErrCommandFailed is matched by every CommandFailedError.
var ErrCommandFailed = errors.New("command failed")

// CommandFailedError reports a command that failed on every attempt.
type CommandFailedError struct {
	Module   string
	Method   string
	Attempts int
	Err      error
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %s on %s failed after %d attempt(s): %v", e.Method, e.Module, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last underlying failure.
func (e *CommandFailedError) Unwrap() []error { return []error{ErrCommandFailed, e.Err} }
