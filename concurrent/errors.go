package concurrent

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

var (
	// ErrNotStarted is returned when using a runner that has not been
	// started or that has already been stopped
	ErrNotStarted = errors.New("runner is not started")

	// ErrBacklogFull is returned by TryRun when no more inputs can be
	// queued without blocking
	ErrBacklogFull = errors.New("runner backlog is full")

	// ErrPanic is the cause of the errors built from a recovered panic
	ErrPanic = errors.New("panic recovered")
)

// ErrCannotRecover is an error that can be passed by clients to
// retry mechanisms so that the attempted action is not retried
type ErrCannotRecover struct {
	Cause error
}

// Error implementation of error for ErrCannotRecover
func (e ErrCannotRecover) Error() string {
	return e.Cause.Error()
}

// Unwrap returns the cause
func (e ErrCannotRecover) Unwrap() error {
	return e.Cause
}

// ErrMaxAttemptsReached is an error that is returned after attempting
// an action multiple times with failures
type ErrMaxAttemptsReached struct {
	Causes []error
}

// Error implementation of error for ErrMaxAttemptsReached
func (e ErrMaxAttemptsReached) Error() string {
	if len(e.Causes) == 0 {
		return "maximum number of attempts reached"
	}
	return fmt.Sprintf("maximum number of attempts %d reached, last error: %s",
		len(e.Causes), e.Causes[len(e.Causes)-1].Error())
}

// Unwrap returns the causes of every failed attempt
func (e ErrMaxAttemptsReached) Unwrap() []error {
	return e.Causes
}

// ErrorFromPanic builds an error wrapping ErrPanic from the value
// returned by recover. The stack is kept in the message so it
// must not be exposed to clients
func ErrorFromPanic(r interface{}) error {
	stacktrace := debug.Stack()

	switch x := r.(type) {
	case string:
		return errors.Wrapf(ErrPanic, "%s at %s", x, string(stacktrace))
	case error:
		return errors.Wrapf(ErrPanic, "%s at %s", x.Error(), string(stacktrace))
	default:
		return errors.Wrapf(ErrPanic, "unknown panic %+v at %s", r, string(stacktrace))
	}
}
