package timer

import (
	"context"
	"time"

	"braces.dev/errtrace"

	"github.com/ghettovoice/gotimer/internal/types"
)

// CountCallback is invoked on every repetition of a [CountTimer] with the
// zero-based repetition index.
type CountCallback = func(ctx context.Context, tm Timer, rep int)

// CompleteCallback is invoked once when a bounded timer completes,
// before the timer is removed from its registry.
type CompleteCallback = func(ctx context.Context)

// CountTimer fires its callback exactly N times at interval boundaries,
// then invokes the completion callback and kills itself.
//
// The per-repetition callback fires through a synthesized counting
// chain: [Timer.SetCallback] replaces the whole chain, counting
// included, with the given plain callback, and [Timer.Callback] returns
// only a plain callback installed that way.
type CountTimer struct {
	*baseTimer

	// guarded by the base lock
	st countState

	onComplete types.CallbackManager[CompleteCallback]
}

type countState struct {
	reps      int
	remaining int
	fired     int
	cb        CountCallback
	done      CompleteCallback
}

// NewCountTimer creates, registers and starts a bounded-repetition timer.
// The callback fires exactly reps times with indices 0..reps-1, never
// more, regardless of restart churn. done is optional and runs once after
// the last repetition. reps <= 0 completes immediately without firing.
func NewCountTimer(interval time.Duration, reps int, cb CountCallback, done CompleteCallback, opts *TimerOptions) (*CountTimer, error) {
	if cb == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("nil callback"))
	}

	tm := new(CountTimer)
	tm.st = countState{
		reps:      reps,
		remaining: reps,
		cb:        cb,
		done:      done,
	}
	tm.baseTimer = newBaseTimer(TimerTypeCount, tm, interval, nil, opts)
	tm.chain = tm.countFired
	tm.initFSM(TimerStateRunning)

	if reps <= 0 {
		tm.reg.add(tm)
		tm.complete(tm.ctx, done)
		return tm, nil
	}

	tm.start()
	return tm, nil
}

// Repetitions returns the configured repetition count.
func (tm *CountTimer) Repetitions() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.st.reps
}

// Remaining returns the number of repetitions still to fire.
func (tm *CountTimer) Remaining() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.st.remaining
}

// Fired returns the number of repetitions fired so far.
func (tm *CountTimer) Fired() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.st.fired
}

// OnComplete registers an additional completion observer. Observers run
// on the fire goroutine, after the completion callback and before the
// timer leaves its registry.
func (tm *CountTimer) OnComplete(fn CompleteCallback) (cancel func()) {
	return tm.onComplete.Add(fn)
}

func (tm *CountTimer) schedule(fn func()) Handle {
	return tm.sched.AfterFunc(tm.interval, fn)
}

func (tm *CountTimer) fired() {
	tm.invokeCallback()
}

// countFired is the synthesized counting chain installed as the base
// callback. The next repetition is armed before the caller's callback
// runs, so a slow callback does not stretch the schedule.
func (tm *CountTimer) countFired(ctx context.Context, _ Timer) {
	tm.mu.Lock()
	tm.st.remaining--
	rep := tm.st.fired
	tm.st.fired++
	last := tm.st.remaining <= 0
	if !last {
		tm.fireEvt(tmEvtRestart)
	}
	cb := tm.st.cb
	done := tm.st.done
	tm.mu.Unlock()

	if cb != nil {
		cb(ctx, tm, rep)
	}
	if last {
		tm.complete(ctx, done)
	}
}

func (tm *CountTimer) complete(ctx context.Context, done CompleteCallback) {
	if done != nil {
		done(ctx)
	}
	for fn := range tm.onComplete.All() {
		fn(ctx)
	}
	tm.Kill()
}
