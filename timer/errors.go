package timer

import (
	"github.com/ghettovoice/gotimer/internal/errorutil"
)

// Errors returned by timer constructors and registry lookups.
const (
	ErrInvalidArgument = errorutil.ErrInvalidArgument

	// ErrTimerKilled means the operation target is a killed timer.
	ErrTimerKilled Error = "timer killed"
	// ErrTimerNotRegistered means no live timer has the given id.
	ErrTimerNotRegistered Error = "timer not registered"
)

// Error is a string type that implements the error interface.
//
// See [errorutil.Error].
type Error = errorutil.Error

// NewInvalidArgumentError returns an error wrapping [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return errorutil.NewInvalidArgumentError(args...)
}
