package domain

import "errors"

// ErrSetupFailed is returned when program initialization or the first sync failed.
var ErrSetupFailed = errors.New("program setup failed")

// ErrSetupRequired is returned when an operation needs a completed setup.
var ErrSetupRequired = errors.New("setup required")

// ErrInvalidState is returned when a command is issued in a state that does not permit it.
var ErrInvalidState = errors.New("invalid debugger state")

// ErrUnknownSnapshot is returned when rolling back to a timestamp absent from history.
var ErrUnknownSnapshot = errors.New("unknown snapshot")

// ErrInvalidEvent is returned for empty or malformed event names.
var ErrInvalidEvent = errors.New("invalid event")

// ErrAssertionFailed is returned when a produced snapshot is not state-valid.
var ErrAssertionFailed = errors.New("assertion failed")

// ErrCommandRejected is returned when a lane or the engine refuses new work.
var ErrCommandRejected = errors.New("command rejected")

// ErrBreakpointNotAllowed is returned when a breakpoint targets a non-instrumentable line.
var ErrBreakpointNotAllowed = errors.New("breakpoint not allowed on line")

// ErrSessionStopped is returned by instrumentation hooks once the session is stopped.
var ErrSessionStopped = errors.New("session stopped")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidRange is returned for a malformed history range.
var ErrInvalidRange = errors.New("invalid range")

// ErrorCode is the stable, client-facing name of an error kind.
type ErrorCode string

const (
	CodeNone                 ErrorCode = ""
	CodeSetupFailed          ErrorCode = "SETUP_FAILED"
	CodeSetupRequired        ErrorCode = "SETUP_REQUIRED"
	CodeInvalidState         ErrorCode = "INVALID_STATE"
	CodeUnknownSnapshot      ErrorCode = "UNKNOWN_SNAPSHOT"
	CodeInvalidEvent         ErrorCode = "INVALID_EVENT"
	CodeAssertionFailed      ErrorCode = "ASSERTION_FAILED"
	CodeCommandRejected      ErrorCode = "COMMAND_REJECTED"
	CodeBreakpointNotAllowed ErrorCode = "BREAKPOINT_NOT_ALLOWED"
	CodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	CodeInvalidRange         ErrorCode = "INVALID_RANGE"
	CodeInternal             ErrorCode = "INTERNAL"
)

var codes = []struct {
	err  error
	code ErrorCode
}{
	{ErrSetupFailed, CodeSetupFailed},
	{ErrSetupRequired, CodeSetupRequired},
	{ErrInvalidState, CodeInvalidState},
	{ErrUnknownSnapshot, CodeUnknownSnapshot},
	{ErrInvalidEvent, CodeInvalidEvent},
	{ErrAssertionFailed, CodeAssertionFailed},
	{ErrCommandRejected, CodeCommandRejected},
	{ErrSessionStopped, CodeCommandRejected},
	{ErrBreakpointNotAllowed, CodeBreakpointNotAllowed},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrInvalidRange, CodeInvalidRange},
}

// Code maps an error chain to its ErrorCode. Unknown errors map to CodeInternal.
func Code(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// IsFatal reports whether an error kind tears the session down.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSetupFailed) || errors.Is(err, ErrAssertionFailed)
}
