package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// callbackMsg carries a task completion callback into Update.
type callbackMsg struct {
	fn func()
}

// Dispatcher hands task callbacks to the bubbletea Update goroutine, which
// is the UI thread of this program. Workers push callbacks on a channel;
// a listener command turns each one into a callbackMsg and Update re-arms
// the listener after running it.
type Dispatcher struct {
	ch      chan func()
	done    chan struct{}
	closing sync.Once
}

// NewDispatcher creates a dispatcher with room for buffer pending callbacks.
func NewDispatcher(buffer int) *Dispatcher {
	return &Dispatcher{
		ch:   make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Dispatch queues fn for the UI goroutine. It blocks while the buffer is
// full and drops fn once the dispatcher is closed.
func (d *Dispatcher) Dispatch(fn func()) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.ch <- fn:
	case <-d.done:
	}
}

// Close stops delivery. Listeners return nil.
func (d *Dispatcher) Close() {
	d.closing.Do(func() { close(d.done) })
}

// listen waits for the next callback.
func (d *Dispatcher) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-d.ch:
			return callbackMsg{fn: fn}
		case <-d.done:
			return nil
		}
	}
}
