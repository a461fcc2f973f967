// Package fault defines the error classes shared by every pipeline stage.
//
// Errors returned by tessera packages wrap one of the sentinels below, so
// callers classify them with errors.Is instead of matching strings.
package fault

import "errors"

var (
	// ErrInvalidInput marks empty or unusable document bytes at the boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidArgument marks caller contract violations such as an undersized frame buffer.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProtocol marks wire-level failures; the session is torn down.
	ErrProtocol = errors.New("protocol error")
	// ErrSchedulerState marks a message that arrived in a state that cannot handle it.
	ErrSchedulerState = errors.New("scheduler state error")
)

// Kind returns a short class name for logging, or "internal" for unclassified errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrSchedulerState):
		return "scheduler_state"
	default:
		return "internal"
	}
}
