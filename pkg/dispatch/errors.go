package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a dispatch failure. Codes separate expected, user-facing
// rejections from registration bugs and handler faults so callers can log,
// alert, or reply appropriately.
type Code string

const (
	// CodeUnknownCommand means no tree node matched the inbound name.
	CodeUnknownCommand Code = "UNKNOWN_COMMAND"

	// CodeStructureMismatch means the live interaction shape disagrees with
	// the registered schema. This signals a registration or remote-state
	// desynchronization, not a user error.
	CodeStructureMismatch Code = "STRUCTURE_MISMATCH"

	// CodeCheckRejected means an admission check denied the invocation.
	CodeCheckRejected Code = "CHECK_REJECTED"

	// CodeCooldown means the invocation arrived inside a cooldown window.
	CodeCooldown Code = "COOLDOWN"

	// CodeHandlerPanic means the handler panicked; the payload was captured
	// at the dispatch boundary.
	CodeHandlerPanic Code = "HANDLER_PANIC"

	// CodeHandlerError wraps an error returned by the handler itself.
	CodeHandlerError Code = "HANDLER_ERROR"
)

// Error is the dispatch error surface returned to callers.
type Error struct {
	// Code categorizes the failure.
	Code Code

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Command is the qualified command name ("config set") when resolution
	// got that far.
	Command string

	// Remaining is the wait left on a cooldown rejection.
	Remaining time.Duration

	// Payload carries the recovered panic value for CodeHandlerPanic.
	Payload any

	// Stack is the goroutine stack captured at the recover site.
	Stack []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error so errors.Is and errors.As work.
func (e *Error) Unwrap() error {
	return e.Err
}

// Reject builds a check rejection with a user-facing reason. Custom checks
// return it (directly or wrapped) to deny an invocation.
func Reject(format string, args ...any) *Error {
	return &Error{Code: CodeCheckRejected, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the dispatch code from an error chain, or "" if the error
// did not originate here.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRejection reports whether err is an expected admission rejection
// (check or cooldown) rather than a fault.
func IsRejection(err error) bool {
	c := CodeOf(err)
	return c == CodeCheckRejected || c == CodeCooldown
}

// AsCooldown extracts the remaining wait from a cooldown rejection.
func AsCooldown(err error) (time.Duration, bool) {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeCooldown {
		return de.Remaining, true
	}
	return 0, false
}

func errUnknownCommand(name string) *Error {
	return &Error{
		Code:    CodeUnknownCommand,
		Message: fmt.Sprintf("no registered command matches %q", name),
		Command: name,
	}
}

func errStructureMismatch(command, description string) *Error {
	return &Error{
		Code:    CodeStructureMismatch,
		Message: description,
		Command: command,
	}
}

func errCooldown(command string, remaining time.Duration) *Error {
	return &Error{
		Code:      CodeCooldown,
		Message:   fmt.Sprintf("command on cooldown for another %s", remaining.Round(time.Millisecond)),
		Command:   command,
		Remaining: remaining,
	}
}

func errHandler(command string, err error) *Error {
	return &Error{
		Code:    CodeHandlerError,
		Message: "handler returned an error",
		Command: command,
		Err:     err,
	}
}

func errPanic(command string, payload any, stack []byte) *Error {
	return &Error{
		Code:    CodeHandlerPanic,
		Message: fmt.Sprintf("handler panicked: %v", payload),
		Command: command,
		Payload: payload,
		Stack:   stack,
	}
}

// rejectionOf normalizes an error returned by a check: dispatch errors pass
// through, anything else becomes a CHECK_REJECTED wrapping the original.
func rejectionOf(command string, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		if de.Command == "" {
			de.Command = command
		}
		return de
	}
	return &Error{
		Code:    CodeCheckRejected,
		Message: "admission check rejected the invocation",
		Command: command,
		Err:     err,
	}
}
