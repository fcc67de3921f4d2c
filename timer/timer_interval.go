package timer

import (
	"time"

	"braces.dev/errtrace"
)

// IntervalTimer fires its callback repeatedly, every interval, until
// paused, cancelled or killed.
type IntervalTimer struct {
	*baseTimer
}

// NewIntervalTimer creates, registers and starts a repeating timer.
func NewIntervalTimer(interval time.Duration, cb Callback, opts *TimerOptions) (*IntervalTimer, error) {
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(IntervalTimer)
	tm.baseTimer = newBaseTimer(TimerTypeInterval, tm, interval, cb, opts)
	tm.initFSM(TimerStateRunning)
	tm.start()
	return tm, nil
}

func (tm *IntervalTimer) schedule(fn func()) Handle {
	return tm.sched.RepeatFunc(tm.interval, fn)
}

func (tm *IntervalTimer) fired() {
	tm.invokeCallback()
}
