package timer

//go:generate go tool errtrace -w .

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"braces.dev/errtrace"
	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/ghettovoice/gotimer/internal/gopool"
	"github.com/ghettovoice/gotimer/internal/types"
	"github.com/ghettovoice/gotimer/timing"
)

// TimerID uniquely identifies a timer for its whole lifetime.
// It stays valid regardless of other timers being added or removed.
type TimerID = uuid.UUID

// TimerState represents the lifecycle state of a timer.
type TimerState string

const (
	// TimerStateRunning indicates the timer is armed on the host primitive.
	TimerStateRunning TimerState = "running"
	// TimerStatePaused indicates the timer is disarmed but keeps its
	// interval and callback. Restart re-arms the full interval.
	TimerStatePaused TimerState = "paused"
	// TimerStateCancelled indicates the timer is disarmed but still
	// registered and restartable.
	TimerStateCancelled TimerState = "cancelled"
	// TimerStateKilled is terminal: the timer is deregistered and every
	// further operation on it is a safe no-op.
	TimerStateKilled TimerState = "killed"
)

// TimerType identifies the timer variant.
type TimerType string

const (
	TimerTypeDelay    TimerType = "delay"
	TimerTypeInterval TimerType = "interval"
	TimerTypeCount    TimerType = "count"
	TimerTypeOneShot  TimerType = "one_shot"
	TimerTypeTrigger  TimerType = "trigger"
)

// Callback is invoked when a timer fires. The owning timer is passed both
// as an argument and through the context, see [TimerFromContext], so the
// callback can pause, restart or kill its own timer.
type Callback = func(ctx context.Context, tm Timer)

// FireHandler is an additional observer of timer fires registered with
// [Timer.OnFire]. Handlers run on the shared dispatch pool.
type FireHandler = func(ctx context.Context, tm Timer)

// Timer is the common capability surface of all timer variants.
type Timer interface {
	// ID returns the registry identifier of the timer.
	ID() TimerID
	// Type returns the timer variant.
	Type() TimerType
	// State returns the current lifecycle state.
	State() TimerState
	// IsRunning reports whether the timer is in the running state.
	// Paused, cancelled and killed timers all report false.
	IsRunning() bool

	// Pause disarms the timer but keeps its interval and callback.
	// A later Restart re-arms the full interval, never the remainder.
	Pause()
	// Restart re-arms the timer with its current interval and callback,
	// disarming any pending schedule first.
	Restart()
	// Cancel disarms the timer. It stays registered and restartable.
	Cancel()
	// Kill cancels the timer, removes it from its registry and retires
	// the effective callback for deferred reclamation. Terminal.
	Kill()

	// Interval returns the current interval.
	Interval() time.Duration
	// SetInterval replaces the interval and implicitly cancels the timer.
	// The caller must Restart explicitly.
	SetInterval(d time.Duration)
	// Callback returns the caller-supplied callback.
	Callback() Callback
	// SetCallback replaces the callback, on the bounded variants the
	// whole synthesized chain included. The effective callback wrapper
	// is discarded, retired and rebuilt; a running timer restarts
	// automatically with the new callback.
	SetCallback(fn Callback)

	// Elapsed returns the time since the timer was last armed,
	// zero when not running.
	Elapsed() time.Duration
	// Left returns the time remaining until the next fire,
	// zero when not running.
	Left() time.Duration

	// OnFire registers an additional fire observer.
	// It can be removed by calling the returned cancel function.
	OnFire(fn FireHandler) (cancel func())

	// Context returns the timer's context, carrying the timer itself.
	Context() context.Context
	// Snapshot returns a serializable view of the timer state.
	Snapshot() *TimerSnapshot
}

const timerCtxKey types.ContextKey = "timer"

// TimerFromContext returns the timer carried by the context of a callback.
func TimerFromContext(ctx context.Context) (Timer, bool) {
	tm, ok := ctx.Value(timerCtxKey).(Timer)
	return tm, ok
}

const (
	tmEvtPause   = "pause"
	tmEvtRestart = "restart"
	tmEvtCancel  = "cancel"
	tmEvtKill    = "kill"
)

// timerImpl is the variant-specific part of a timer.
type timerImpl interface {
	Timer
	// schedule arms the effective callback on the host primitive and
	// returns the new handle. Called with the base lock held.
	schedule(fn func()) Handle
	// fired runs the variant behavior for one primitive fire.
	// Called without the base lock.
	fired()
}

// baseTimer carries the lifecycle state machine shared by all variants.
type baseTimer struct {
	id   TimerID
	typ  TimerType
	impl timerImpl
	fsm  *stateless.StateMachine
	ctx  context.Context
	log  *slog.Logger

	sched Scheduler
	reg   *Registry
	queue *ReclaimQueue

	mu       sync.Mutex
	interval time.Duration
	cb       Callback
	// chain is the synthesized variant behavior fired in place of cb.
	// SetCallback clears it.
	chain Callback
	wrp   *wrapper
	handle   Handle
	gen      uint64
	armedAt  time.Time

	onFire types.CallbackManager[FireHandler]
}

func newBaseTimer(typ TimerType, impl timerImpl, interval time.Duration, cb Callback, opts *TimerOptions) *baseTimer {
	bt := &baseTimer{
		id:       uuid.New(),
		typ:      typ,
		impl:     impl,
		interval: interval,
		cb:       cb,
		sched:    opts.sched(),
		reg:      opts.registry(),
		queue:    opts.reclaim(),
		log:      opts.log(),
	}
	bt.ctx = context.WithValue(context.Background(), timerCtxKey, impl)
	return bt
}

func (bt *baseTimer) initFSM(start TimerState) {
	fsm := stateless.NewStateMachine(start)

	fsm.Configure(TimerStateRunning).
		PermitReentry(tmEvtRestart).
		OnEntryFrom(tmEvtRestart, bt.actArm).
		Permit(tmEvtPause, TimerStatePaused).
		Permit(tmEvtCancel, TimerStateCancelled).
		Permit(tmEvtKill, TimerStateKilled)

	fsm.Configure(TimerStatePaused).
		OnEntry(bt.actDisarm).
		Ignore(tmEvtPause).
		Permit(tmEvtRestart, TimerStateRunning).
		Permit(tmEvtCancel, TimerStateCancelled).
		Permit(tmEvtKill, TimerStateKilled)

	fsm.Configure(TimerStateCancelled).
		OnEntry(bt.actDisarm).
		PermitReentry(tmEvtCancel).
		Permit(tmEvtPause, TimerStatePaused).
		Permit(tmEvtRestart, TimerStateRunning).
		Permit(tmEvtKill, TimerStateKilled)

	fsm.Configure(TimerStateKilled).
		OnEntry(bt.actKilled).
		Ignore(tmEvtPause).
		Ignore(tmEvtRestart).
		Ignore(tmEvtCancel).
		Ignore(tmEvtKill)

	bt.fsm = fsm
}

// start registers the timer and arms the first schedule.
func (bt *baseTimer) start() {
	bt.reg.add(bt.impl)

	bt.mu.Lock()
	bt.armLocked(bt.ctx)
	bt.mu.Unlock()
}

// fireEvt fires a lifecycle trigger. Callers must hold the base lock.
// A trigger rejected by the state machine is a programming error.
func (bt *baseTimer) fireEvt(evt string) {
	if err := bt.fsm.FireCtx(bt.ctx, evt); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", evt, bt.State(), err))
	}
}

func (bt *baseTimer) actArm(ctx context.Context, _ ...any) error {
	bt.armLocked(ctx)
	return nil
}

func (bt *baseTimer) actDisarm(ctx context.Context, _ ...any) error {
	bt.disarmLocked(ctx)
	return nil
}

func (bt *baseTimer) actKilled(ctx context.Context, _ ...any) error {
	bt.disarmLocked(ctx)
	bt.reg.remove(bt.id)

	// The wrapper stays reachable through the reclamation queue until the
	// sweep: a fire already in flight resolves to a cleared target instead
	// of a freed closure.
	if w := bt.wrp; w != nil {
		bt.wrp = nil
		w.clear()
		bt.queue.retire(w)
	}

	bt.log.LogAttrs(ctx, slog.LevelDebug, "timer killed", slog.Any("timer", bt.impl))
	return nil
}

// armLocked disarms any pending schedule and arms a fresh one with the
// current interval and effective callback. Caller must hold the base lock.
func (bt *baseTimer) armLocked(ctx context.Context) {
	bt.disarmLocked(ctx)

	bt.gen++
	gen := bt.gen
	w := bt.wrapperLocked()

	bt.handle = bt.impl.schedule(func() { w.invoke(gen) })
	bt.armedAt = timing.Now()

	bt.log.LogAttrs(ctx, slog.LevelDebug,
		"timer armed",
		slog.Any("timer", bt.impl),
		slog.Duration("interval", bt.interval),
	)
}

// disarmLocked releases the primitive handle. Caller must hold the base lock.
func (bt *baseTimer) disarmLocked(ctx context.Context) {
	if bt.handle == nil {
		return
	}
	bt.handle.Stop()
	bt.handle = nil

	bt.log.LogAttrs(ctx, slog.LevelDebug, "timer disarmed", slog.Any("timer", bt.impl))
}

// wrapperLocked lazily builds and memoizes the effective callback wrapper.
// Caller must hold the base lock.
func (bt *baseTimer) wrapperLocked() *wrapper {
	if bt.wrp == nil {
		bt.wrp = newWrapper(bt.fire)
	}
	return bt.wrp
}

// fire is the wrapper target: the entry point of every primitive fire.
// Fires of stale generations and fires reaching a non-running timer are
// dropped here, which is what makes a late fire after cancel/kill harmless.
func (bt *baseTimer) fire(gen uint64) {
	bt.mu.Lock()
	if gen != bt.gen || bt.State() != TimerStateRunning {
		bt.mu.Unlock()
		return
	}
	impl := bt.impl
	bt.log.LogAttrs(bt.ctx, slog.LevelDebug, "timer fired", slog.Any("timer", impl))
	bt.mu.Unlock()

	impl.fired()
	bt.dispatchFire()
}

// invokeCallback calls the effective callback with the timer's context:
// the synthesized chain when one is installed, the caller-supplied
// callback otherwise. Called without the base lock so the callback can
// operate on its own timer.
func (bt *baseTimer) invokeCallback() {
	bt.mu.Lock()
	cb := bt.chain
	if cb == nil {
		cb = bt.cb
	}
	bt.mu.Unlock()

	if cb != nil {
		cb(bt.ctx, bt.impl)
	}
}

func (bt *baseTimer) dispatchFire() {
	if bt.onFire.Len() == 0 {
		return
	}
	for fn := range bt.onFire.All() {
		gopool.Submit(func() { fn(bt.ctx, bt.impl) })
	}
}

// ID returns the registry identifier of the timer.
func (bt *baseTimer) ID() TimerID { return bt.id }

// Type returns the timer variant.
func (bt *baseTimer) Type() TimerType { return bt.typ }

// State returns the current lifecycle state.
func (bt *baseTimer) State() TimerState {
	st, _ := bt.fsm.MustState().(TimerState)
	return st
}

// IsRunning reports whether the timer is in the running state.
func (bt *baseTimer) IsRunning() bool {
	return bt.State() == TimerStateRunning
}

// Pause disarms the timer, preserving interval and callback.
func (bt *baseTimer) Pause() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.fireEvt(tmEvtPause)
}

// Restart re-arms the timer with the full current interval.
func (bt *baseTimer) Restart() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.fireEvt(tmEvtRestart)
}

// Cancel disarms the timer. It stays registered.
func (bt *baseTimer) Cancel() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.fireEvt(tmEvtCancel)
}

// Kill cancels, deregisters and retires the timer. Terminal.
func (bt *baseTimer) Kill() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.fireEvt(tmEvtKill)
}

// Interval returns the current interval.
func (bt *baseTimer) Interval() time.Duration {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.interval
}

// SetInterval replaces the interval and implicitly cancels the timer.
// Non-positive values are not validated: what they mean is up to the
// host primitive.
func (bt *baseTimer) SetInterval(d time.Duration) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	bt.interval = d
	bt.fireEvt(tmEvtCancel)
}

// Callback returns the caller-supplied callback.
func (bt *baseTimer) Callback() Callback {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.cb
}

// SetCallback replaces the callback, synthesized chain included,
// discards and retires the old effective wrapper and restarts a running
// timer with the new one.
func (bt *baseTimer) SetCallback(fn Callback) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	bt.cb = fn
	bt.chain = nil
	if w := bt.wrp; w != nil {
		bt.wrp = nil
		w.clear()
		bt.queue.retire(w)
	}
	if bt.State() == TimerStateRunning {
		bt.fireEvt(tmEvtRestart)
	}
}

// Elapsed returns the time since the timer was last armed.
func (bt *baseTimer) Elapsed() time.Duration {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.State() != TimerStateRunning {
		return 0
	}
	return timing.Now().Sub(bt.armedAt)
}

// Left returns the time remaining until the next fire.
func (bt *baseTimer) Left() time.Duration {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.State() != TimerStateRunning {
		return 0
	}
	left := bt.interval - timing.Now().Sub(bt.armedAt)
	if left < 0 {
		return 0
	}
	return left
}

// OnFire registers an additional fire observer.
//
// Observers run on the shared dispatch pool, independently of the primary
// callback. The observer can be removed by calling the returned cancel
// function. Multiple observers can be registered.
func (bt *baseTimer) OnFire(fn FireHandler) (cancel func()) {
	return bt.onFire.Add(fn)
}

// Context returns the timer's context, carrying the timer itself.
func (bt *baseTimer) Context() context.Context { return bt.ctx }

// Snapshot returns a serializable view of the timer state.
// Runtime-only fields such as callbacks and the primitive handle are
// excluded and must be reattached after restoration.
func (bt *baseTimer) Snapshot() *TimerSnapshot {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	snap := &TimerSnapshot{
		Time:     timing.Now(),
		Type:     bt.typ,
		State:    bt.State(),
		Interval: bt.interval,
	}
	if snap.State == TimerStateRunning {
		snap.Elapsed = timing.Now().Sub(bt.armedAt)
	}
	return snap
}

// MarshalJSON implements [json.Marshaler].
func (bt *baseTimer) MarshalJSON() ([]byte, error) {
	return errtrace.Wrap2(json.Marshal(bt.Snapshot()))
}

// LogValue implements [slog.LogValuer].
func (bt *baseTimer) LogValue() slog.Value {
	if bt == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("id", bt.id.String()),
		slog.String("type", string(bt.typ)),
		slog.String("state", string(bt.State())),
	)
}

// wrapper is the effective callback: the indirection actually handed to
// the host scheduling primitive. Clearing its target makes any late
// invocation a no-op without rebuilding the primitive binding.
type wrapper struct {
	mu     sync.Mutex
	target func(gen uint64)
}

func newWrapper(target func(gen uint64)) *wrapper {
	return &wrapper{target: target}
}

func (w *wrapper) invoke(gen uint64) {
	w.mu.Lock()
	fn := w.target
	w.mu.Unlock()

	if fn != nil {
		fn(gen)
	}
}

func (w *wrapper) clear() {
	w.mu.Lock()
	w.target = nil
	w.mu.Unlock()
}
