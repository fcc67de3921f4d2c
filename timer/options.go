package timer

import (
	"log/slog"

	"github.com/ghettovoice/gotimer/internal/log"
)

// TimerOptions are extra options shared by all timer constructors.
// A nil pointer is valid and means defaults.
type TimerOptions struct {
	// Scheduler provides the host scheduling primitives.
	// Defaults to [DefaultScheduler].
	Scheduler Scheduler
	// Registry tracks the timer for bulk operations.
	// Defaults to [DefaultRegistry].
	Registry *Registry
	// Reclaim receives retired callback wrappers.
	// Defaults to [DefaultReclaimQueue].
	Reclaim *ReclaimQueue
	// Log is a custom logger.
	Log *slog.Logger
}

func (o *TimerOptions) sched() Scheduler {
	if o == nil || o.Scheduler == nil {
		return DefaultScheduler()
	}
	return o.Scheduler
}

func (o *TimerOptions) registry() *Registry {
	if o == nil || o.Registry == nil {
		return DefaultRegistry()
	}
	return o.Registry
}

func (o *TimerOptions) reclaim() *ReclaimQueue {
	if o == nil || o.Reclaim == nil {
		return DefaultReclaimQueue()
	}
	return o.Reclaim
}

func (o *TimerOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}
