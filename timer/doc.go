// Package timer implements callback-scheduling timers on top of host
// delayed-execution primitives.
//
// Five variants share one lifecycle: [DelayTimer] fires once per arming,
// [IntervalTimer] fires repeatedly, [CountTimer] fires an exact number of
// times and self-destructs, [OneShotTimer] fires once ever and
// self-destructs, [TriggerTimer] is a one-shot with an owned repeating
// sub-timer ticking while the outer fire is pending.
//
// Every timer moves through running, paused, cancelled and killed states.
// Pause and cancel disarm without deregistering; restart always re-arms
// the full interval. Kill is terminal: the timer leaves its [Registry]
// and its effective callback wrapper is retired to a [ReclaimQueue],
// where it stays a valid no-op target for late fires until the periodic
// sweep drops it.
//
// Timers register in a [Registry], the process-wide default or a custom
// one via [TimerOptions], which supports pause/restart/cancel/kill bulk
// operations and per-variant counters.
//
// The host primitives are abstracted by [Scheduler]; the default
// implementation sits on the timing package and honors its mock mode, so
// tests can drive time by hand.
package timer
