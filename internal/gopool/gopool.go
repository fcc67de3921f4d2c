// Package gopool provides a shared goroutine pool for dispatching timer
// callbacks off the scheduling goroutines.
package gopool

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ghettovoice/gotimer/internal/log"
)

// DefaultPoolSize is the capacity of the shared worker pool.
var DefaultPoolSize = 1 << 14

// ExpiryDuration is the interval to clean up expired workers.
const ExpiryDuration = 10 * time.Second

type poolLogger struct{}

func (poolLogger) Printf(format string, args ...any) {
	log.Default().Warn(fmt.Sprintf(format, args...))
}

var (
	mu   sync.Mutex
	pool *ants.Pool
)

func get() *ants.Pool {
	mu.Lock()
	defer mu.Unlock()

	if pool == nil {
		pool, _ = ants.NewPool(DefaultPoolSize, ants.WithOptions(ants.Options{
			ExpiryDuration: ExpiryDuration,
			Nonblocking:    true,
			DisablePurge:   true,
			PanicHandler: func(v any) {
				log.Default().Error("panic on pool worker",
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)
			},
			Logger: poolLogger{},
		}))
	}
	return pool
}

// Submit runs the task on the shared pool, falling back to a plain
// goroutine when the pool is saturated.
func Submit(task func()) {
	if err := get().Submit(task); err != nil {
		go task()
	}
}

// Release shuts the shared pool down. The next Submit recreates it.
func Release() {
	mu.Lock()
	defer mu.Unlock()

	if pool != nil {
		pool.Release()
		pool = nil
	}
}
