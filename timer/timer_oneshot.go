package timer

import (
	"context"
	"log/slog"
	"time"

	"braces.dev/errtrace"

	"github.com/ghettovoice/gotimer/internal/types"
)

// OneShotTimer fires its callback exactly once and then kills itself.
type OneShotTimer struct {
	*baseTimer

	// guarded by the base lock
	st oneShotState

	onComplete types.CallbackManager[CompleteCallback]
}

type oneShotState struct {
	done bool
}

// NewOneShotTimer creates, registers and starts a one-shot timer.
// The callback fires at most once even under rapid restarts: restart is a
// silent no-op while the timer is running with a fire pending.
func NewOneShotTimer(interval time.Duration, cb Callback, opts *TimerOptions) (*OneShotTimer, error) {
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(OneShotTimer)
	tm.init(tm, TimerTypeOneShot, interval, cb, opts)
	tm.start()
	return tm, nil
}

func (tm *OneShotTimer) init(impl timerImpl, typ TimerType, interval time.Duration, cb Callback, opts *TimerOptions) {
	tm.baseTimer = newBaseTimer(typ, impl, interval, cb, opts)
	tm.chain = tm.oneShotFired
	tm.initFSM(TimerStateRunning)
}

// Restart is a no-op while the timer is running: a pending fire cannot be
// re-armed. A paused or cancelled one-shot restarts as usual.
func (tm *OneShotTimer) Restart() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.State() == TimerStateRunning {
		tm.log.LogAttrs(tm.ctx, slog.LevelDebug, "restart skipped, fire pending", slog.Any("timer", tm.impl))
		return
	}
	tm.fireEvt(tmEvtRestart)
}

// OnComplete registers an additional completion observer. Observers run
// on the fire goroutine, after the callback and before the timer leaves
// its registry.
func (tm *OneShotTimer) OnComplete(fn CompleteCallback) (cancel func()) {
	return tm.onComplete.Add(fn)
}

func (tm *OneShotTimer) schedule(fn func()) Handle {
	return tm.sched.AfterFunc(tm.interval, fn)
}

func (tm *OneShotTimer) fired() {
	tm.invokeCallback()
}

// oneShotFired is the synthesized base callback: invoke the caller's
// callback once, then self-destruct.
func (tm *OneShotTimer) oneShotFired(ctx context.Context, _ Timer) {
	tm.mu.Lock()
	if tm.st.done {
		tm.mu.Unlock()
		return
	}
	tm.st.done = true
	cb := tm.cb
	impl := tm.impl
	tm.mu.Unlock()

	if cb != nil {
		cb(ctx, impl)
	}
	for fn := range tm.onComplete.All() {
		fn(ctx)
	}
	impl.Kill()
}
