package timer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghettovoice/gotimer/timer"
)

func newTimerSet(t *testing.T, env *env) []timer.Timer {
	t.Helper()

	cb := func(context.Context, timer.Timer) {}
	var tms []timer.Timer

	dt, err := timer.NewDelayTimer(time.Second, cb, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}
	tms = append(tms, dt)

	it, err := timer.NewIntervalTimer(time.Second, cb, env.opts)
	if err != nil {
		t.Fatalf("timer.NewIntervalTimer(1s, cb, opts) error = %v, want nil", err)
	}
	tms = append(tms, it)

	ot, err := timer.NewOneShotTimer(time.Second, cb, env.opts)
	if err != nil {
		t.Fatalf("timer.NewOneShotTimer(1s, cb, opts) error = %v, want nil", err)
	}
	tms = append(tms, ot)

	tt, err := timer.NewTriggerTimer(time.Second, cb, 200*time.Millisecond, cb, env.opts)
	if err != nil {
		t.Fatalf("timer.NewTriggerTimer(1s, cb, 200ms, cb, opts) error = %v, want nil", err)
	}
	tms = append(tms, tt)

	return tms
}

func TestRegistry_KillAll(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	tms := newTimerSet(t, env)

	// trigger timer counts twice: owner plus sub-timer
	if got, want := env.reg.Len(), len(tms)+1; got != want {
		t.Fatalf("reg.Len() = %d, want %d", got, want)
	}

	env.reg.KillAll()

	if got := env.reg.Len(); got != 0 {
		t.Fatalf("reg.Len() after KillAll = %d, want 0", got)
	}
	for i, tm := range tms {
		if got, want := tm.State(), timer.TimerStateKilled; got != want {
			t.Fatalf("timer #%d state = %q, want %q", i, got, want)
		}
	}

	env.reg.KillAll()
	if got := env.reg.Len(); got != 0 {
		t.Fatalf("reg.Len() after second KillAll = %d, want 0", got)
	}
}

func TestRegistry_PauseAllRestartAll(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	tms := newTimerSet(t, env)

	env.reg.PauseAll()
	for i, tm := range tms {
		if got, want := tm.State(), timer.TimerStatePaused; got != want {
			t.Fatalf("timer #%d state after PauseAll = %q, want %q", i, got, want)
		}
	}
	if got := len(env.sched.live()); got != 0 {
		t.Fatalf("live handles after PauseAll = %d, want 0", got)
	}

	env.reg.RestartAll()
	for i, tm := range tms {
		if got, want := tm.State(), timer.TimerStateRunning; got != want {
			t.Fatalf("timer #%d state after RestartAll = %q, want %q", i, got, want)
		}
	}
	if got := env.reg.Len(); got != len(tms)+1 {
		t.Fatalf("reg.Len() after RestartAll = %d, want %d", got, len(tms)+1)
	}
}

func TestRegistry_CancelAllKeepsRegistered(t *testing.T) {
	t.Parallel()

	env := newEnv(t)
	tms := newTimerSet(t, env)

	env.reg.CancelAll()

	for i, tm := range tms {
		if got, want := tm.State(), timer.TimerStateCancelled; got != want {
			t.Fatalf("timer #%d state after CancelAll = %q, want %q", i, got, want)
		}
	}
	if got, want := env.reg.Len(), len(tms)+1; got != want {
		t.Fatalf("reg.Len() after CancelAll = %d, want %d", got, want)
	}
}

func TestRegistry_StableIDs(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	cb := func(context.Context, timer.Timer) {}
	tm1, _ := timer.NewDelayTimer(time.Second, cb, env.opts)
	tm2, _ := timer.NewDelayTimer(time.Second, cb, env.opts)
	tm3, _ := timer.NewDelayTimer(time.Second, cb, env.opts)

	// removing an earlier timer must not invalidate later identifiers
	tm1.Kill()

	for _, tm := range []timer.Timer{tm2, tm3} {
		got, ok := env.reg.Get(tm.ID())
		if !ok {
			t.Fatalf("reg.Get(%v) not found", tm.ID())
		}
		if got.ID() != tm.ID() {
			t.Fatalf("reg.Get(%v).ID() = %v", tm.ID(), got.ID())
		}
	}
	if _, ok := env.reg.Get(tm1.ID()); ok {
		t.Fatalf("reg.Get(%v) found killed timer", tm1.ID())
	}
}

func TestRegistry_KillByID(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	if err := env.reg.Kill(tm.ID()); err != nil {
		t.Fatalf("reg.Kill(%v) error = %v, want nil", tm.ID(), err)
	}
	if got, want := tm.State(), timer.TimerStateKilled; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}

	if err := env.reg.Kill(tm.ID()); !errors.Is(err, timer.ErrTimerNotRegistered) {
		t.Fatalf("reg.Kill(%v) error = %v, want %v", tm.ID(), err, timer.ErrTimerNotRegistered)
	}
}

func TestRegistry_AllOrder(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	cb := func(context.Context, timer.Timer) {}
	var want []timer.TimerID
	for range 3 {
		tm, err := timer.NewDelayTimer(time.Second, cb, env.opts)
		if err != nil {
			t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
		}
		want = append(want, tm.ID())
	}

	var got []timer.TimerID
	for tm := range env.reg.All() {
		got = append(got, tm.ID())
	}
	if len(got) != len(want) {
		t.Fatalf("iterated %d timers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iteration order[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRegistry_Stats(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	cb := func(context.Context, timer.Timer) {}
	tm1, _ := timer.NewDelayTimer(time.Second, cb, env.opts)
	timer.NewDelayTimer(time.Second, cb, env.opts)
	timer.NewIntervalTimer(time.Second, cb, env.opts)

	tm1.Kill()

	st := env.reg.Stats()
	if got, want := st.Delay, (timer.TimerTypeStats{Active: 1, Total: 2}); got != want {
		t.Fatalf("st.Delay = %+v, want %+v", got, want)
	}
	if got, want := st.Interval, (timer.TimerTypeStats{Active: 1, Total: 1}); got != want {
		t.Fatalf("st.Interval = %+v, want %+v", got, want)
	}
	if got, want := st.Active(), int64(2); got != want {
		t.Fatalf("st.Active() = %d, want %d", got, want)
	}
	if got, want := st.Total(), uint64(3); got != want {
		t.Fatalf("st.Total() = %d, want %d", got, want)
	}
}
