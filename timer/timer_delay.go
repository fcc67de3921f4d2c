package timer

import (
	"time"

	"braces.dev/errtrace"
)

// DelayTimer fires its callback once per arming, interval after the
// arming. It stays registered after firing: a later Restart arms another
// single fire.
type DelayTimer struct {
	*baseTimer
}

// NewDelayTimer creates, registers and starts a delay timer.
func NewDelayTimer(interval time.Duration, cb Callback, opts *TimerOptions) (*DelayTimer, error) {
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(DelayTimer)
	tm.baseTimer = newBaseTimer(TimerTypeDelay, tm, interval, cb, opts)
	tm.initFSM(TimerStateRunning)
	tm.start()
	return tm, nil
}

func (tm *DelayTimer) schedule(fn func()) Handle {
	return tm.sched.AfterFunc(tm.interval, fn)
}

func (tm *DelayTimer) fired() {
	tm.invokeCallback()
}
