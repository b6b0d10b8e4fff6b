// Package failure classifies errors that cross a background task boundary.
//
// Every failure surfaced to the user carries a Category so the UI can name
// what went wrong ("Database Error: ...", "Username not found") without
// inspecting driver-specific error types.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Category is the coarse class of a failure.
type Category int

const (
	// Unexpected failures were caught generically and carry no finer class.
	Unexpected Category = iota
	// Connectivity failures mean the store could not be reached.
	Connectivity
	// Logical failures are well-formed requests the store rejected
	// (no matching row, constraint violation).
	Logical
	// MalformedInput failures come from decoding or parsing user input.
	MalformedInput
)

// String returns the string representation of the Category.
func (c Category) String() string {
	switch c {
	case Connectivity:
		return "connectivity"
	case Logical:
		return "logical"
	case MalformedInput:
		return "malformed_input"
	default:
		return "unexpected"
	}
}

// Error is a classified failure with a human-readable message.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified failure without an underlying cause.
func New(c Category, msg string) *Error {
	return &Error{Category: c, Message: msg}
}

// Wrap returns a classified failure around err.
func Wrap(c Category, msg string, err error) *Error {
	return &Error{Category: c, Message: msg, Err: err}
}

// Connectivityf is shorthand for a Connectivity failure.
func Connectivityf(err error, format string, args ...any) *Error {
	return Wrap(Connectivity, fmt.Sprintf(format, args...), err)
}

// Logicalf is shorthand for a Logical failure.
func Logicalf(format string, args ...any) *Error {
	return New(Logical, fmt.Sprintf(format, args...))
}

// Malformedf is shorthand for a MalformedInput failure.
func Malformedf(err error, format string, args ...any) *Error {
	return Wrap(MalformedInput, fmt.Sprintf(format, args...), err)
}

// From converts an arbitrary error into a classified failure.
// Errors that already carry a classification anywhere in their chain keep it.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Connectivity, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(Connectivity, "operation cancelled", err)
	}
	return Wrap(Unexpected, "", err)
}

// CategoryOf returns the category of err, or Unexpected if it is unclassified.
func CategoryOf(err error) Category {
	if fe := From(err); fe != nil {
		return fe.Category
	}
	return Unexpected
}

// Is reports whether err is classified as c.
func Is(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// UserMessage renders err as the text of a modal notification.
func UserMessage(err error) string {
	fe := From(err)
	if fe == nil {
		return ""
	}
	switch fe.Category {
	case Connectivity:
		return "Database Error: " + fe.Error()
	case Logical, MalformedInput:
		if fe.Message != "" {
			return fe.Message
		}
		return fe.Error()
	default:
		return "Unexpected error: " + fe.Error()
	}
}
