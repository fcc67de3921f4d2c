package timer

import (
	"iter"
	"log/slog"
	"sync"

	"braces.dev/errtrace"

	"github.com/ghettovoice/gotimer/internal/errorutil"
	"github.com/ghettovoice/gotimer/internal/log"
	"github.com/ghettovoice/gotimer/timing"
)

// Registry tracks live timers and applies bulk lifecycle operations.
//
// Timers register themselves at construction and deregister on kill.
// Identifiers are stable: removing one timer never invalidates another
// timer's id.
type Registry struct {
	mu     sync.Mutex
	order  []TimerID
	timers map[TimerID]Timer
	log    *slog.Logger

	stats registryStats
}

// NewRegistry creates an empty timer registry.
func NewRegistry(opts *RegistryOptions) *Registry {
	return &Registry{
		timers: make(map[TimerID]Timer),
		log:    opts.log(),
	}
}

var (
	defRegistry   *Registry
	defRegistryMu sync.Mutex
)

// DefaultRegistry returns the process-wide registry used when no registry
// is supplied through [TimerOptions].
func DefaultRegistry() *Registry {
	defRegistryMu.Lock()
	defer defRegistryMu.Unlock()

	if defRegistry == nil {
		defRegistry = NewRegistry(nil)
	}
	return defRegistry
}

func (r *Registry) add(tm Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := tm.ID()
	if _, ok := r.timers[id]; ok {
		return
	}
	r.timers[id] = tm
	r.order = append(r.order, id)
	r.stats.of(tm.Type()).add()

	r.log.LogAttrs(tm.Context(), slog.LevelDebug, "timer registered", slog.Any("timer", tm))
}

func (r *Registry) remove(id TimerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tm, ok := r.timers[id]
	if !ok {
		return
	}
	delete(r.timers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.stats.of(tm.Type()).drop()

	r.log.LogAttrs(tm.Context(), slog.LevelDebug, "timer deregistered", slog.Any("timer", tm))
}

// Get returns the registered timer with the given id.
func (r *Registry) Get(id TimerID) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tm, ok := r.timers[id]
	return tm, ok
}

// Kill kills the registered timer with the given id.
// It returns [ErrTimerNotRegistered] when no live timer has the id.
func (r *Registry) Kill(id TimerID) error {
	tm, ok := r.Get(id)
	if !ok {
		return errtrace.Wrap(errorutil.NewWrapperError(ErrTimerNotRegistered, "id %q", id))
	}
	tm.Kill()
	return nil
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// All returns an iterator over live timers in registration order.
// The iteration works on a snapshot: timers registered or killed during
// the iteration don't affect it.
func (r *Registry) All() iter.Seq[Timer] {
	return func(yield func(Timer) bool) {
		for _, tm := range r.snapshot() {
			if !yield(tm) {
				return
			}
		}
	}
}

func (r *Registry) snapshot() []Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	tms := make([]Timer, 0, len(r.order))
	for _, id := range r.order {
		tms = append(tms, r.timers[id])
	}
	return tms
}

// first returns the earliest-registered live timer.
func (r *Registry) first() (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		return nil, false
	}
	return r.timers[r.order[0]], true
}

// PauseAll pauses every live timer.
func (r *Registry) PauseAll() {
	for _, tm := range r.snapshot() {
		tm.Pause()
	}
}

// RestartAll restarts every live timer. One-shot timers with a pending
// fire skip the restart as usual.
func (r *Registry) RestartAll() {
	for _, tm := range r.snapshot() {
		tm.Restart()
	}
}

// CancelAll cancels every live timer. Cancelled timers stay registered.
func (r *Registry) CancelAll() {
	for _, tm := range r.snapshot() {
		tm.Cancel()
	}
}

// KillAll kills every live timer, always operating on the front of the
// registration order until the registry is empty. Killing a trigger timer
// takes its sub-timer down with it, so the live set can shrink by more
// than one per step.
func (r *Registry) KillAll() {
	for {
		tm, ok := r.first()
		if !ok {
			return
		}
		tm.Kill()
		// A foreign-registry timer or a kill that failed to deregister
		// would loop forever on the same front entry.
		if ftm, ok := r.first(); ok && ftm.ID() == tm.ID() {
			r.remove(tm.ID())
		}
	}
}

// Stats returns a point-in-time report of registry counters.
func (r *Registry) Stats() RegistryStats {
	st := RegistryStats{Time: timing.Now()}
	st.Delay = r.stats.delay.report()
	st.Interval = r.stats.interval.report()
	st.Count = r.stats.count.report()
	st.OneShot = r.stats.oneShot.report()
	st.Trigger = r.stats.trigger.report()
	return st
}

// RegistryOptions are extra options for a [Registry].
// A nil pointer is valid and means defaults.
type RegistryOptions struct {
	// Log is a custom logger.
	Log *slog.Logger
}

func (o *RegistryOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}
