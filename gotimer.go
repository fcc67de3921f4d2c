// Package gotimer is the facade over the timer package: variant
// constructors bound to the process-wide defaults plus the bulk
// operations of the default registry.
//
// Use the timer package directly to supply a custom scheduler, registry
// or reclamation queue.
package gotimer

import (
	"time"

	"braces.dev/errtrace"

	"github.com/ghettovoice/gotimer/timer"
)

// Aliases of the core timer types.
type (
	Timer            = timer.Timer
	TimerID          = timer.TimerID
	TimerState       = timer.TimerState
	TimerType        = timer.TimerType
	Callback         = timer.Callback
	CountCallback    = timer.CountCallback
	CompleteCallback = timer.CompleteCallback
)

// NewDelayTimer creates and starts a delay timer in the default registry.
func NewDelayTimer(interval time.Duration, cb Callback) (*timer.DelayTimer, error) {
	return errtrace.Wrap2(timer.NewDelayTimer(interval, cb, nil))
}

// NewIntervalTimer creates and starts a repeating timer in the default
// registry.
func NewIntervalTimer(interval time.Duration, cb Callback) (*timer.IntervalTimer, error) {
	return errtrace.Wrap2(timer.NewIntervalTimer(interval, cb, nil))
}

// NewCountTimer creates and starts a bounded-repetition timer in the
// default registry. done is optional.
func NewCountTimer(interval time.Duration, reps int, cb CountCallback, done CompleteCallback) (*timer.CountTimer, error) {
	return errtrace.Wrap2(timer.NewCountTimer(interval, reps, cb, done, nil))
}

// NewOneShotTimer creates and starts a one-shot timer in the default
// registry.
func NewOneShotTimer(interval time.Duration, cb Callback) (*timer.OneShotTimer, error) {
	return errtrace.Wrap2(timer.NewOneShotTimer(interval, cb, nil))
}

// NewTriggerTimer creates and starts a trigger timer with its repeating
// sub-timer in the default registry.
func NewTriggerTimer(interval time.Duration, cb Callback, tickInterval time.Duration, tickCb Callback) (*timer.TriggerTimer, error) {
	return errtrace.Wrap2(timer.NewTriggerTimer(interval, cb, tickInterval, tickCb, nil))
}

// PauseAllTimers pauses every timer in the default registry.
func PauseAllTimers() { timer.DefaultRegistry().PauseAll() }

// RestartAllTimers restarts every timer in the default registry.
func RestartAllTimers() { timer.DefaultRegistry().RestartAll() }

// CancelAllTimers cancels every timer in the default registry.
func CancelAllTimers() { timer.DefaultRegistry().CancelAll() }

// KillAllTimers kills every timer in the default registry.
func KillAllTimers() { timer.DefaultRegistry().KillAll() }

// ActiveTimerCount returns the number of live timers in the default
// registry.
func ActiveTimerCount() int { return timer.DefaultRegistry().Len() }
