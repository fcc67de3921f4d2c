package timer

import (
	"context"
	"time"

	"braces.dev/errtrace"
)

// TriggerTimer is a one-shot timer that owns a repeating sub-timer firing
// at a finer granularity while the outer fire is pending.
//
// The sub-timer's lifetime is strictly nested inside the owner's: it is
// created and started at construction and killed when the outer timer
// fires or is killed, whichever comes first. Its tick count is
// load-determined, best effort, unlike [CountTimer]'s exact guarantee.
type TriggerTimer struct {
	*OneShotTimer

	inner *IntervalTimer
}

// NewTriggerTimer creates, registers and starts a trigger timer together
// with its inner repeating sub-timer. Both count toward the registry, so
// one trigger timer contributes two to the active count until completion.
func NewTriggerTimer(interval time.Duration, cb Callback, tickInterval time.Duration, tickCb Callback, opts *TimerOptions) (*TriggerTimer, error) {
	if cb == nil || tickCb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	inner, err := NewIntervalTimer(tickInterval, tickCb, opts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	tm := new(TriggerTimer)
	tm.inner = inner
	tm.OneShotTimer = new(OneShotTimer)
	tm.OneShotTimer.init(tm, TimerTypeTrigger, interval, cb, opts)
	// The inner timer goes down before the outer callback runs, so no
	// tick can be observed after the outer fire.
	tm.chain = func(ctx context.Context, t Timer) {
		inner.Kill()
		tm.oneShotFired(ctx, t)
	}
	tm.start()
	return tm, nil
}

// Inner returns the owned repeating sub-timer.
func (tm *TriggerTimer) Inner() *IntervalTimer { return tm.inner }

// Kill kills the inner sub-timer first, then the timer itself.
func (tm *TriggerTimer) Kill() {
	tm.inner.Kill()
	tm.OneShotTimer.Kill()
}
