// Package errorutil provides error helpers shared across the module.
package errorutil

import (
	"errors"
	"fmt"
)

// Error is a string type that implements the error interface.
type Error string

func (s Error) Error() string { return string(s) }

func Errorf(format string, args ...any) error {
	return Error(fmt.Sprintf(format, args...))
}

// NewWrapperError creates or wraps an error with a sentinel error.
// It supports multiple argument patterns:
//   - No args: returns sentinel
//   - error arg: wraps with sentinel (unless already wrapped)
//   - string arg: formats as message with sentinel
//   - string + args: formats with Sprintf then wraps with sentinel
func NewWrapperError(sentinel error, args ...any) error {
	if len(args) == 0 {
		return sentinel
	}
	switch v := args[0].(type) {
	case error:
		if errors.Is(v, sentinel) {
			return v
		}
		return fmt.Errorf("%w: %w", sentinel, v)
	case string:
		if len(args) == 1 {
			return fmt.Errorf("%w: %s", sentinel, v)
		}
		return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(v, args[1:]...))
	default:
		return sentinel
	}
}

// ErrInvalidArgument is an error returned when an invalid argument is provided.
const ErrInvalidArgument Error = "invalid argument"

// NewInvalidArgumentError creates a new error with [ErrInvalidArgument] or
// wraps provided error with [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return NewWrapperError(ErrInvalidArgument, args...)
}
