package timer

import (
	"time"

	"github.com/ghettovoice/gotimer/timing"
)

//go:generate go tool mockgen -destination=../internal/testutil/schedmock/scheduler.go -package=schedmock . Scheduler,Handle

// Handle is an armed host scheduling primitive owned by a single timer.
type Handle interface {
	// Stop disarms the primitive. It reports whether a pending fire was
	// prevented. Stop does not wait for an in-flight fire to return.
	Stop() bool
}

// Scheduler provides the host scheduling primitives timers are built on.
//
// The default implementation delegates to the [timing] package and thus
// honors its mock mode. Tests can substitute their own scheduler through
// [TimerOptions].
type Scheduler interface {
	// AfterFunc arranges a single call of fn after d.
	AfterFunc(d time.Duration, fn func()) Handle
	// RepeatFunc arranges repeated calls of fn every d.
	RepeatFunc(d time.Duration, fn func()) Handle
}

// DefaultScheduler returns the process-wide scheduler backed by [timing].
func DefaultScheduler() Scheduler { return stdSched }

var stdSched = stdScheduler{}

type stdScheduler struct{}

func (stdScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	return timing.AfterFunc(d, fn)
}

func (stdScheduler) RepeatFunc(d time.Duration, fn func()) Handle {
	return tickerHandle{timing.RepeatFunc(d, fn)}
}

type tickerHandle struct {
	tk timing.Ticker
}

func (h tickerHandle) Stop() bool {
	h.tk.Stop()
	return true
}
