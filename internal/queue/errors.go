package queue

import "fmt"

// tooBusyError signals queue overflow for 429 mapping.
type tooBusyError struct{ depth int }

func (e tooBusyError) Error() string {
	return fmt.Sprintf("too busy: admission queue full (%d pending)", e.depth)
}

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(depth int) error { return tooBusyError{depth: depth} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// deadlineError signals a request whose deadline passed while still queued.
type deadlineError struct{ requestID string }

func (e deadlineError) Error() string {
	return "deadline exceeded before dispatch: " + e.requestID
}

// ErrDeadlineExceeded constructs a deadlineError.
func ErrDeadlineExceeded(requestID string) error { return deadlineError{requestID: requestID} }

// IsDeadlineExceeded reports whether err indicates a queue-position timeout.
func IsDeadlineExceeded(err error) bool {
	_, ok := err.(deadlineError)
	return ok
}
