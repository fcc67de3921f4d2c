package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ghettovoice/gotimer/internal/log"
	"github.com/ghettovoice/gotimer/internal/types"
)

// DefaultSweepInterval is the reclamation sweep period used when
// [ReclaimQueueOptions] doesn't override it. The sweep is sized coarsely
// to bound memory growth from construct/kill churn, not per timer.
const DefaultSweepInterval = 30 * time.Second

// ReclaimQueue holds retired callback wrappers until a periodic sweep
// drops the last references to them.
//
// A killed timer's wrapper must stay a valid, inert object while the host
// primitive may still invoke it. Retiring clears the wrapper's target and
// parks it here; the sweeper drains the queue at a fixed period.
type ReclaimQueue struct {
	queue types.Deque[*wrapper]
	log   *slog.Logger
	sched Scheduler
	perd  time.Duration

	mu      sync.Mutex
	sweeper Handle
	closed  bool
}

// NewReclaimQueue creates a reclamation queue. The sweeper starts lazily
// on the first retirement.
func NewReclaimQueue(opts *ReclaimQueueOptions) *ReclaimQueue {
	return &ReclaimQueue{
		log:   opts.log(),
		sched: opts.sched(),
		perd:  opts.sweepInterval(),
	}
}

var (
	defReclaim   *ReclaimQueue
	defReclaimMu sync.Mutex
)

// DefaultReclaimQueue returns the process-wide reclamation queue used
// when no queue is supplied through [TimerOptions].
func DefaultReclaimQueue() *ReclaimQueue {
	defReclaimMu.Lock()
	defer defReclaimMu.Unlock()

	if defReclaim == nil {
		defReclaim = NewReclaimQueue(nil)
	}
	return defReclaim
}

func (q *ReclaimQueue) retire(w *wrapper) {
	if w == nil {
		return
	}
	w.clear()
	q.queue.Append(w)
	q.ensureSweeper()
}

func (q *ReclaimQueue) ensureSweeper() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.sweeper != nil {
		return
	}
	q.sweeper = q.sched.RepeatFunc(q.perd, q.sweep)
}

func (q *ReclaimQueue) sweep() {
	if n := len(q.queue.Drain()); n > 0 {
		q.log.LogAttrs(context.Background(), slog.LevelDebug,
			"reclaim sweep",
			slog.Int("reclaimed", n),
		)
	}
}

// Pending returns the number of wrappers awaiting the next sweep.
func (q *ReclaimQueue) Pending() int {
	return q.queue.Len()
}

// Sweep drains the queue immediately, without waiting for the periodic
// sweeper.
func (q *ReclaimQueue) Sweep() {
	q.sweep()
}

// Close stops the periodic sweeper and drains the queue. Further
// retirements are still accepted and dropped on the next explicit
// [ReclaimQueue.Sweep].
func (q *ReclaimQueue) Close() {
	q.mu.Lock()
	q.closed = true
	sw := q.sweeper
	q.sweeper = nil
	q.mu.Unlock()

	if sw != nil {
		sw.Stop()
	}
	q.sweep()
}

// ReclaimQueueOptions are extra options for a [ReclaimQueue].
// A nil pointer is valid and means defaults.
type ReclaimQueueOptions struct {
	// SweepInterval overrides [DefaultSweepInterval].
	SweepInterval time.Duration
	// Scheduler runs the periodic sweeper.
	Scheduler Scheduler
	// Log is a custom logger.
	Log *slog.Logger
}

func (o *ReclaimQueueOptions) sweepInterval() time.Duration {
	if o == nil || o.SweepInterval <= 0 {
		return DefaultSweepInterval
	}
	return o.SweepInterval
}

func (o *ReclaimQueueOptions) sched() Scheduler {
	if o == nil || o.Scheduler == nil {
		return DefaultScheduler()
	}
	return o.Scheduler
}

func (o *ReclaimQueueOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}
