package timer

import (
	"sync/atomic"
	"time"
)

// RegistryStats is a point-in-time report of per-variant timer counters.
type RegistryStats struct {
	Time     time.Time      `json:"time"`
	Delay    TimerTypeStats `json:"delay"`
	Interval TimerTypeStats `json:"interval"`
	Count    TimerTypeStats `json:"count"`
	OneShot  TimerTypeStats `json:"one_shot"`
	Trigger  TimerTypeStats `json:"trigger"`
}

// Active returns the total number of live timers across all variants.
func (s RegistryStats) Active() int64 {
	return s.Delay.Active + s.Interval.Active + s.Count.Active + s.OneShot.Active + s.Trigger.Active
}

// Total returns the total number of timers ever registered.
func (s RegistryStats) Total() uint64 {
	return s.Delay.Total + s.Interval.Total + s.Count.Total + s.OneShot.Total + s.Trigger.Total
}

// TimerTypeStats holds counters of a single timer variant.
type TimerTypeStats struct {
	// Active is the number of currently registered timers.
	Active int64 `json:"active"`
	// Total is the number of timers registered over the registry lifetime.
	Total uint64 `json:"total"`
}

type registryStats struct {
	delay    typeCounters
	interval typeCounters
	count    typeCounters
	oneShot  typeCounters
	trigger  typeCounters
	other    typeCounters
}

func (s *registryStats) of(typ TimerType) *typeCounters {
	switch typ {
	case TimerTypeDelay:
		return &s.delay
	case TimerTypeInterval:
		return &s.interval
	case TimerTypeCount:
		return &s.count
	case TimerTypeOneShot:
		return &s.oneShot
	case TimerTypeTrigger:
		return &s.trigger
	default:
		return &s.other
	}
}

type typeCounters struct {
	active atomic.Int64
	total  atomic.Uint64
}

func (c *typeCounters) add() {
	c.active.Add(1)
	c.total.Add(1)
}

func (c *typeCounters) drop() {
	c.active.Add(-1)
}

func (c *typeCounters) report() TimerTypeStats {
	return TimerTypeStats{
		Active: c.active.Load(),
		Total:  c.total.Load(),
	}
}
