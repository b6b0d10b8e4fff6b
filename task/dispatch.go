package task

import (
	"context"
	"sync"
	"sync/atomic"
)

// Dispatcher posts a callback to the UI thread.
//
// Implementations must run every dispatched callback exactly once, in the
// order received, on the single goroutine that owns UI state.
type Dispatcher interface {
	Dispatch(fn func())
}

// Loop is a headless UI thread: one goroutine draining a queue of callbacks.
// It backs the CLI and tests; the terminal UI uses its own dispatcher.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	notify  chan struct{}
	done    chan struct{}
	closing sync.Once

	executing atomic.Bool
	processed atomic.Int64
}

// NewLoop creates a loop. Call Run to start draining it.
func NewLoop() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Dispatch queues fn. It never blocks, so callbacks may dispatch further
// callbacks. Callbacks dispatched after Close are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.notify:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.executing.Store(true)
			fn()
			l.executing.Store(false)
			l.processed.Add(1)
		}
	}
}

// Close stops Run. Pending callbacks are discarded.
func (l *Loop) Close() {
	l.closing.Do(func() { close(l.done) })
}

// InLoop reports whether a loop callback is running right now.
// Called from inside a callback it is always true.
func (l *Loop) InLoop() bool {
	return l.executing.Load()
}

// Processed returns the number of callbacks the loop has run.
func (l *Loop) Processed() int64 {
	return l.processed.Load()
}
