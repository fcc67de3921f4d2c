// Package timing provides a shim layer over the standard library timer
// primitives. In normal operation it delegates directly to the time package.
// When MockMode is enabled, timers and tickers are driven by a virtual clock
// that only advances when Elapse is called, which makes timer-dependent code
// testable without real waiting.
package timing

import (
	"sort"
	"sync"
	"time"
)

// MockMode determines whether new timers are backed by the real clock or by
// the virtual one. It is checked at construction time, so it must be set
// before the timers under test are created.
var MockMode bool

// Timer is a running single-fire timer.
type Timer interface {
	// C returns the channel on which the fire time is delivered.
	C() <-chan time.Time
	// Stop prevents the timer from firing.
	// It reports whether it stopped the timer before it fired.
	Stop() bool
	// Reset re-arms the timer with the full duration d, counted from now.
	// It reports whether the timer was still armed.
	Reset(d time.Duration) bool
}

// Ticker is a running repeating timer.
type Ticker interface {
	// C returns the channel on which tick times are delivered.
	C() <-chan time.Time
	// Stop prevents any future ticks. It does not close the channel.
	Stop()
}

// NewTimer creates a timer that fires once after d.
func NewTimer(d time.Duration) Timer {
	if MockMode {
		return clk.newTimer(d, nil)
	}
	return &realTimer{time.NewTimer(d)}
}

// After returns a channel that delivers the current time after d.
func After(d time.Duration) <-chan time.Time {
	return NewTimer(d).C()
}

// AfterFunc creates a timer that invokes fn in its own goroutine after d.
func AfterFunc(d time.Duration, fn func()) Timer {
	if MockMode {
		return clk.newTimer(d, fn)
	}
	return &realTimer{time.AfterFunc(d, fn)}
}

// NewTicker creates a ticker that delivers on its channel every d.
func NewTicker(d time.Duration) Ticker {
	if MockMode {
		return clk.newTicker(d, nil)
	}
	return &realChanTicker{time.NewTicker(d)}
}

// RepeatFunc creates a ticker that invokes fn in its own goroutine every d
// until stopped.
func RepeatFunc(d time.Duration, fn func()) Ticker {
	if MockMode {
		return clk.newTicker(d, fn)
	}

	t := &realFuncTicker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.loop(fn)
	return t
}

// Now returns the current time of the active clock.
func Now() time.Time {
	if MockMode {
		return clk.currentTime()
	}
	return time.Now()
}

// Elapse advances the virtual clock by d and fires every timer and ticker
// that becomes due. It has no effect on timers created with MockMode off.
func Elapse(d time.Duration) {
	clk.elapse(d)
}

type realTimer struct{ *time.Timer }

func (t *realTimer) C() <-chan time.Time { return t.Timer.C }

type realChanTicker struct{ *time.Ticker }

func (t *realChanTicker) C() <-chan time.Time { return t.Ticker.C }

type realFuncTicker struct {
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func (t *realFuncTicker) C() <-chan time.Time { return t.ticker.C }

func (t *realFuncTicker) Stop() {
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}

func (t *realFuncTicker) loop(fn func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

var clk = newMockClock()

type mockClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*mockTimer
	tickers []*mockTicker
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Now()}
}

func (c *mockClock) currentTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) newTimer(d time.Duration, fn func()) *mockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{
		clk:    c,
		ch:     make(chan time.Time, 1),
		end:    c.now.Add(d),
		fn:     fn,
		active: true,
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) newTicker(d time.Duration, fn func()) *mockTicker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTicker{
		clk:    c,
		ch:     make(chan time.Time, 1),
		next:   c.now.Add(d),
		period: d,
		fn:     fn,
		active: true,
	}
	c.tickers = append(c.tickers, t)
	return t
}

type mockEvent struct {
	at     time.Time
	timer  *mockTimer
	ticker *mockTicker
}

func (c *mockClock) elapse(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var events []mockEvent
	alive := c.timers[:0]
	for _, t := range c.timers {
		if t.end.After(now) {
			alive = append(alive, t)
			continue
		}
		t.active = false
		events = append(events, mockEvent{at: t.end, timer: t})
	}
	c.timers = alive

	for _, t := range c.tickers {
		for !t.next.After(now) {
			events = append(events, mockEvent{at: t.next, ticker: t})
			t.next = t.next.Add(t.period)
		}
	}
	c.mu.Unlock()

	if len(events) == 0 {
		return
	}

	// Due times order the batch; a single-fire timer sorts before a tick
	// due at the same instant, so a callback that stops a ticker also
	// suppresses that ticker's coincident tick.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].timer != nil && events[j].timer == nil
		}
		return events[i].at.Before(events[j].at)
	})

	// The batch runs sequentially off the caller's goroutine: Elapse never
	// blocks on a callback, while callbacks still observe the effects of
	// earlier fires in the same batch.
	go func() {
		for _, ev := range events {
			if ev.timer != nil {
				ev.timer.fire(ev.at)
			} else {
				ev.ticker.fire(ev.at)
			}
		}
	}()
}

// remove drops the timer from the pending list.
// It reports whether the timer was still pending.
func (c *mockClock) remove(t *mockTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			t.active = false
			return true
		}
	}
	return false
}

type mockTimer struct {
	clk    *mockClock
	ch     chan time.Time
	end    time.Time
	fn     func()
	active bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	return t.clk.remove(t)
}

func (t *mockTimer) Reset(d time.Duration) bool {
	c := t.clk
	c.mu.Lock()
	defer c.mu.Unlock()

	t.end = c.now.Add(d)
	if t.active {
		return true
	}
	// An expired or stopped timer goes back on the pending list,
	// other pending timers must stay tracked.
	t.active = true
	c.timers = append(c.timers, t)
	return false
}

func (t *mockTimer) fire(now time.Time) {
	c := t.clk
	c.mu.Lock()
	// Reset between collection and delivery re-arms the timer,
	// the stale fire must not be delivered.
	rearmed := t.active
	fn := t.fn
	c.mu.Unlock()
	if rearmed {
		return
	}

	if fn != nil {
		fn()
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}

type mockTicker struct {
	clk    *mockClock
	ch     chan time.Time
	next   time.Time
	period time.Duration
	fn     func()
	active bool
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	c := t.clk
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pending := range c.tickers {
		if pending == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			t.active = false
			return
		}
	}
}

func (t *mockTicker) fire(at time.Time) {
	c := t.clk
	c.mu.Lock()
	stopped := !t.active
	fn := t.fn
	c.mu.Unlock()
	if stopped {
		return
	}

	if fn != nil {
		fn()
		return
	}
	select {
	case t.ch <- at:
	default:
	}
}
