package timer_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ghettovoice/gotimer/internal/gopool"
	"github.com/ghettovoice/gotimer/internal/log"
	"github.com/ghettovoice/gotimer/timer"
)

func TestMain(m *testing.M) {
	code := m.Run()
	gopool.Release()
	if code == 0 {
		// the ants default pool spawns maintenance goroutines at init
		// that outlive Release of the module's own pool
		err := goleak.Find(
			goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
			goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
		)
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			code = 1
		}
	}
	os.Exit(code)
}

// stubScheduler records armed primitives and lets tests fire them by hand.
type stubScheduler struct {
	mu    sync.Mutex
	armed []*stubHandle
}

type stubHandle struct {
	s      *stubScheduler
	d      time.Duration
	fn     func()
	repeat bool
	done   bool
}

func newStubScheduler() *stubScheduler { return &stubScheduler{} }

func (s *stubScheduler) AfterFunc(d time.Duration, fn func()) timer.Handle {
	return s.arm(d, fn, false)
}

func (s *stubScheduler) RepeatFunc(d time.Duration, fn func()) timer.Handle {
	return s.arm(d, fn, true)
}

func (s *stubScheduler) arm(d time.Duration, fn func(), repeat bool) *stubHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &stubHandle{s: s, d: d, fn: fn, repeat: repeat}
	s.armed = append(s.armed, h)
	return h
}

func (h *stubHandle) Stop() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if h.done {
		return false
	}
	h.done = true
	return true
}

// live returns pending handles in arming order.
func (s *stubScheduler) live() []*stubHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hs []*stubHandle
	for _, h := range s.armed {
		if !h.done {
			hs = append(hs, h)
		}
	}
	return hs
}

// fireDelays runs every pending single-fire handle once and returns how
// many fired. Handles armed by the callbacks themselves are not fired.
func (s *stubScheduler) fireDelays() int {
	n := 0
	for _, h := range s.live() {
		if h.repeat {
			continue
		}
		s.mu.Lock()
		if h.done {
			s.mu.Unlock()
			continue
		}
		h.done = true
		s.mu.Unlock()

		h.fn()
		n++
	}
	return n
}

// fireTicks runs every pending repeat handle once and returns how many
// ticked.
func (s *stubScheduler) fireTicks() int {
	n := 0
	for _, h := range s.live() {
		if !h.repeat {
			continue
		}
		s.mu.Lock()
		if h.done {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		h.fn()
		n++
	}
	return n
}

// env bundles an isolated scheduler, registry and reclamation queue.
// The queue sweeps on its own scheduler so its repeat handle never shows
// up in assertions against the timers' scheduler.
type env struct {
	sched *stubScheduler
	sweep *stubScheduler
	reg   *timer.Registry
	queue *timer.ReclaimQueue
	opts  *timer.TimerOptions
}

func newEnv(t *testing.T) *env {
	t.Helper()

	sched := newStubScheduler()
	sweep := newStubScheduler()
	reg := timer.NewRegistry(&timer.RegistryOptions{Log: log.Noop})
	queue := timer.NewReclaimQueue(&timer.ReclaimQueueOptions{Scheduler: sweep, Log: log.Noop})
	t.Cleanup(queue.Close)

	return &env{
		sched: sched,
		sweep: sweep,
		reg:   reg,
		queue: queue,
		opts: &timer.TimerOptions{
			Scheduler: sched,
			Registry:  reg,
			Reclaim:   queue,
			Log:       log.Noop,
		},
	}
}

func TestDelayTimer_Fire(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	fired := make(chan timer.Timer, 1)
	tm, err := timer.NewDelayTimer(time.Second, func(_ context.Context, tm timer.Timer) {
		fired <- tm
	}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	if !tm.IsRunning() {
		t.Fatalf("tm.IsRunning() = false, want true")
	}
	if got, want := tm.Type(), timer.TimerTypeDelay; got != want {
		t.Fatalf("tm.Type() = %q, want %q", got, want)
	}
	if got := env.reg.Len(); got != 1 {
		t.Fatalf("reg.Len() = %d, want 1", got)
	}

	if got := env.sched.fireDelays(); got != 1 {
		t.Fatalf("fireDelays() = %d, want 1", got)
	}
	select {
	case got := <-fired:
		if got.ID() != tm.ID() {
			t.Fatalf("callback timer id = %v, want %v", got.ID(), tm.ID())
		}
	default:
		t.Fatal("callback not invoked")
	}

	// a delay timer stays registered and restartable after firing
	if got := env.reg.Len(); got != 1 {
		t.Fatalf("reg.Len() after fire = %d, want 1", got)
	}
	tm.Restart()
	if got := env.sched.fireDelays(); got != 1 {
		t.Fatalf("fireDelays() after restart = %d, want 1", got)
	}
	<-fired
}

func TestDelayTimer_NilCallback(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	if _, err := timer.NewDelayTimer(time.Second, nil, env.opts); !errors.Is(err, timer.ErrInvalidArgument) {
		t.Fatalf("timer.NewDelayTimer(1s, nil, opts) error = %v, want %v", err, timer.ErrInvalidArgument)
	}
}

func TestDelayTimer_PauseRestartFullInterval(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	tm.Pause()
	if got, want := tm.State(), timer.TimerStatePaused; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}
	if got := len(env.sched.live()); got != 0 {
		t.Fatalf("live handles after pause = %d, want 0", got)
	}

	tm.Restart()
	if got, want := tm.State(), timer.TimerStateRunning; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}
	hs := env.sched.live()
	if len(hs) != 1 {
		t.Fatalf("live handles after restart = %d, want 1", len(hs))
	}
	// re-armed with the full interval, not a remainder
	if got, want := hs[0].d, time.Second; got != want {
		t.Fatalf("re-armed interval = %v, want %v", got, want)
	}
}

func TestDelayTimer_SetIntervalCancels(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	tm.SetInterval(2 * time.Second)
	if got, want := tm.State(), timer.TimerStateCancelled; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}
	if got, want := tm.Interval(), 2*time.Second; got != want {
		t.Fatalf("tm.Interval() = %v, want %v", got, want)
	}
	if got := len(env.sched.live()); got != 0 {
		t.Fatalf("live handles after SetInterval = %d, want 0", got)
	}
	// still registered, an explicit restart arms the new interval
	if got := env.reg.Len(); got != 1 {
		t.Fatalf("reg.Len() = %d, want 1", got)
	}

	tm.Restart()
	hs := env.sched.live()
	if len(hs) != 1 {
		t.Fatalf("live handles after restart = %d, want 1", len(hs))
	}
	if got, want := hs[0].d, 2*time.Second; got != want {
		t.Fatalf("armed interval = %v, want %v", got, want)
	}
}

func TestDelayTimer_SetCallbackWhileRunningRestarts(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	oldFired := make(chan struct{}, 1)
	tm, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {
		oldFired <- struct{}{}
	}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	newFired := make(chan struct{}, 1)
	tm.SetCallback(func(context.Context, timer.Timer) {
		newFired <- struct{}{}
	})

	if got, want := tm.State(), timer.TimerStateRunning; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}
	// the old wrapper is retired, not freed
	if got := env.queue.Pending(); got != 1 {
		t.Fatalf("queue.Pending() = %d, want 1", got)
	}

	if got := env.sched.fireDelays(); got != 1 {
		t.Fatalf("fireDelays() = %d, want 1", got)
	}
	select {
	case <-newFired:
	default:
		t.Fatal("new callback not invoked")
	}
	select {
	case <-oldFired:
		t.Fatal("old callback invoked after replacement")
	default:
	}
}

func TestDelayTimer_KillIsTerminal(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	tm.Kill()
	if got, want := tm.State(), timer.TimerStateKilled; got != want {
		t.Fatalf("tm.State() = %q, want %q", got, want)
	}
	if got := env.reg.Len(); got != 0 {
		t.Fatalf("reg.Len() after kill = %d, want 0", got)
	}
	if got := env.queue.Pending(); got != 1 {
		t.Fatalf("queue.Pending() after kill = %d, want 1", got)
	}

	// every operation on a killed timer is a safe no-op
	tm.Pause()
	tm.Restart()
	tm.Cancel()
	tm.Kill()
	tm.SetInterval(5 * time.Second)
	tm.SetCallback(func(context.Context, timer.Timer) {})

	if got, want := tm.State(), timer.TimerStateKilled; got != want {
		t.Fatalf("tm.State() after repeated ops = %q, want %q", got, want)
	}
	if got := len(env.sched.live()); got != 0 {
		t.Fatalf("live handles after repeated ops = %d, want 0", got)
	}
	if got := env.reg.Len(); got != 0 {
		t.Fatalf("reg.Len() after double kill = %d, want 0", got)
	}
}

func TestDelayTimer_LateFireAfterKill(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	fired := make(chan struct{}, 1)
	_, err := timer.NewDelayTimer(time.Second, func(context.Context, timer.Timer) {
		fired <- struct{}{}
	}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	hs := env.sched.live()
	if len(hs) != 1 {
		t.Fatalf("live handles = %d, want 1", len(hs))
	}

	env.reg.KillAll()

	// simulate an invocation already queued by the host primitive
	hs[0].fn()

	select {
	case <-fired:
		t.Fatal("killed timer's callback invoked by a late fire")
	default:
	}
}

func TestDelayTimer_SelfKillFromCallback(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	_, err := timer.NewDelayTimer(time.Second, func(ctx context.Context, tm timer.Timer) {
		self, ok := timer.TimerFromContext(ctx)
		if !ok || self.ID() != tm.ID() {
			t.Error("context does not carry the owning timer")
		}
		tm.Kill()
	}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewDelayTimer(1s, cb, opts) error = %v, want nil", err)
	}

	if got := env.sched.fireDelays(); got != 1 {
		t.Fatalf("fireDelays() = %d, want 1", got)
	}
	if got := env.reg.Len(); got != 0 {
		t.Fatalf("reg.Len() after self kill = %d, want 0", got)
	}
}

func TestIntervalTimer_RepeatedFires(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	fired := make(chan struct{}, 16)
	tm, err := timer.NewIntervalTimer(time.Second, func(context.Context, timer.Timer) {
		fired <- struct{}{}
	}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewIntervalTimer(1s, cb, opts) error = %v, want nil", err)
	}

	for i := range 3 {
		if got := env.sched.fireTicks(); got != 1 {
			t.Fatalf("fireTicks() #%d = %d, want 1", i, got)
		}
	}
	if got := len(fired); got != 3 {
		t.Fatalf("callback invocations = %d, want 3", got)
	}
	if !tm.IsRunning() {
		t.Fatal("tm.IsRunning() = false, want true")
	}
}

func TestIntervalTimer_PausePreventsTicks(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewIntervalTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewIntervalTimer(1s, cb, opts) error = %v, want nil", err)
	}

	tm.Pause()
	if got := env.sched.fireTicks(); got != 0 {
		t.Fatalf("fireTicks() after pause = %d, want 0", got)
	}

	tm.Restart()
	if got := env.sched.fireTicks(); got != 1 {
		t.Fatalf("fireTicks() after restart = %d, want 1", got)
	}
}

func TestTimer_OnFireObserver(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tm, err := timer.NewIntervalTimer(time.Second, func(context.Context, timer.Timer) {}, env.opts)
	if err != nil {
		t.Fatalf("timer.NewIntervalTimer(1s, cb, opts) error = %v, want nil", err)
	}

	observed := make(chan struct{}, 1)
	cancel := tm.OnFire(func(context.Context, timer.Timer) {
		observed <- struct{}{}
	})

	env.sched.fireTicks()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("fire observer not invoked")
	}

	cancel()
	env.sched.fireTicks()
	select {
	case <-observed:
		t.Fatal("removed fire observer invoked")
	case <-time.After(50 * time.Millisecond):
	}
}
