package timer

import (
	"time"

	"braces.dev/errtrace"
)

// TimerSnapshot is a serializable view of a timer's persistent state.
//
// Runtime-only state is excluded: callbacks, the host primitive handle
// and registry membership can't be serialized and are reattached by the
// Restore* constructors.
type TimerSnapshot struct {
	// Time is the capture time.
	Time time.Time `json:"time"`
	// Type is the timer variant.
	Type TimerType `json:"type"`
	// State is the lifecycle state at capture time.
	State TimerState `json:"state"`
	// Interval is the configured interval.
	Interval time.Duration `json:"interval"`
	// Elapsed is the time the timer had been armed at capture,
	// zero unless running.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// RestoreDelayTimer rebuilds a delay timer from a snapshot with a fresh
// callback. A running snapshot re-arms the full interval, a paused or
// cancelled snapshot restores disarmed. Killed snapshots can't be
// restored.
func RestoreDelayTimer(snap *TimerSnapshot, cb Callback, opts *TimerOptions) (*DelayTimer, error) {
	if err := checkSnapshot(snap, TimerTypeDelay); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(DelayTimer)
	tm.baseTimer = newBaseTimer(TimerTypeDelay, tm, snap.Interval, cb, opts)
	tm.restore(snap.State)
	return tm, nil
}

// RestoreIntervalTimer rebuilds a repeating timer from a snapshot,
// see [RestoreDelayTimer].
func RestoreIntervalTimer(snap *TimerSnapshot, cb Callback, opts *TimerOptions) (*IntervalTimer, error) {
	if err := checkSnapshot(snap, TimerTypeInterval); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(IntervalTimer)
	tm.baseTimer = newBaseTimer(TimerTypeInterval, tm, snap.Interval, cb, opts)
	tm.restore(snap.State)
	return tm, nil
}

func checkSnapshot(snap *TimerSnapshot, typ TimerType) error {
	switch {
	case snap == nil:
		return NewInvalidArgumentError("nil snapshot")
	case snap.Type != typ:
		return NewInvalidArgumentError("snapshot type %q, want %q", snap.Type, typ)
	case snap.State == TimerStateKilled:
		return NewInvalidArgumentError(ErrTimerKilled)
	}
	return nil
}

// restore finishes construction from a snapshot state.
func (bt *baseTimer) restore(st TimerState) {
	bt.initFSM(st)
	if st == TimerStateRunning {
		bt.start()
		return
	}
	bt.reg.add(bt.impl)
}
