// Package task runs blocking operations off the UI thread and hands their
// outcome back to it.
//
// Every database round trip triggered from a screen (login, registration,
// password reset, gallery reload, adoption submission) goes through Submit.
// A task moves through
//
//	Created -> Running -> (Succeeded | Failed) -> Delivered
//
// exactly once. There is no cancelled state: once started, a task runs until
// its operation returns or its optional timeout fires.
//
// # Threading contract
//
//   - Submit is called on the UI thread. It disables the triggering Control
//     before the worker starts, so a second activation of the same control is
//     a no-op while the task is in flight.
//   - The operation runs on its own goroutine. Errors and panics are caught
//     there and turned into a *failure.Error.
//   - The result is posted through the Dispatcher. The delivery callback
//     restores and re-enables the control, then calls Done, then (on success)
//     Refresh. A panic in Done is recovered and reported via OnFault, so the
//     control is never left disabled.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pawtrack/pawtrack/failure"
	"github.com/pawtrack/pawtrack/perf"
)

// State is the lifecycle state of a task instance.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateDelivered
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// DefaultBusyLabel is shown on a control while its task is in flight.
const DefaultBusyLabel = "SUBMITTING..."

// Control is the interactive element that triggered a task.
type Control interface {
	Enabled() bool
	SetEnabled(enabled bool)
	Label() string
	SetLabel(label string)
}

// Result is the outcome of one task: a value on success, a classified
// failure otherwise.
type Result[T any] struct {
	Value T
	Err   *failure.Error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Message returns the user-visible failure message, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return failure.UserMessage(r.Err)
}

// Spec describes one background operation and what to do with its result.
type Spec[T any] struct {
	// Name identifies the task in logs and metrics (e.g. "login").
	Name string

	// Control is disabled while the task runs. Optional.
	Control Control

	// BusyLabel replaces the control label while the task runs.
	// Defaults to DefaultBusyLabel.
	BusyLabel string

	// Op performs the blocking work. Required.
	Op func(ctx context.Context) (T, error)

	// Done receives the result on the UI thread. Optional.
	Done func(Result[T])

	// Refresh runs on the UI thread after Done, only on success.
	Refresh func()

	// OnFault receives a generic message if Done panics.
	OnFault func(msg string)

	// Timeout bounds Op. Zero falls back to the runner default; a zero
	// default means no timeout.
	Timeout time.Duration
}

// Task is one submitted operation. It is not reusable.
type Task[T any] struct {
	id   string
	name string

	mu     sync.Mutex
	state  State
	result Result[T]

	delivered chan struct{}
	once      sync.Once
}

// ID returns the task instance identifier.
func (t *Task[T]) ID() string { return t.id }

// Name returns the task name.
func (t *Task[T]) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the outcome. Only meaningful once the task has left Running.
func (t *Task[T]) Result() Result[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Delivered is closed after the completion callback has run.
func (t *Task[T]) Delivered() <-chan struct{} { return t.delivered }

func (t *Task[T]) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Config configures a Runner.
type Config struct {
	// Dispatcher delivers completion callbacks to the UI thread. Required.
	Dispatcher Dispatcher

	// Logger for task lifecycle logging. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Metrics records task counts and durations. Optional.
	Metrics *Metrics

	// DefaultTimeout applies to specs without their own timeout. Zero means none.
	DefaultTimeout time.Duration

	// SlowThreshold logs a warning for operations that take longer. Zero disables it.
	SlowThreshold time.Duration
}

// Runner submits tasks and delivers their results through a Dispatcher.
type Runner struct {
	dispatcher     Dispatcher
	logger         logrus.FieldLogger
	metrics        *Metrics
	tracer         trace.Tracer
	defaultTimeout time.Duration
	slowThreshold  time.Duration
	baseCtx        context.Context
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Runner{
		dispatcher:     cfg.Dispatcher,
		logger:         cfg.Logger.WithField("component", "task-runner"),
		metrics:        cfg.Metrics,
		tracer:         otel.Tracer("github.com/pawtrack/pawtrack/task"),
		defaultTimeout: cfg.DefaultTimeout,
		slowThreshold:  cfg.SlowThreshold,
		baseCtx:        context.Background(),
	}
}

// Submit starts spec in the background. It must be called on the UI thread.
//
// It returns false without starting anything when spec.Control is disabled,
// i.e. while an earlier task from the same control is still in flight.
func Submit[T any](r *Runner, spec Spec[T]) (*Task[T], bool) {
	if spec.Control != nil && !spec.Control.Enabled() {
		r.logger.WithField("task", spec.Name).Debug("control disabled, ignoring submit")
		return nil, false
	}

	t := &Task[T]{
		id:        uuid.NewString(),
		name:      spec.Name,
		state:     StateCreated,
		delivered: make(chan struct{}),
	}

	var restoreLabel string
	if spec.Control != nil {
		restoreLabel = spec.Control.Label()
		busy := spec.BusyLabel
		if busy == "" {
			busy = DefaultBusyLabel
		}
		spec.Control.SetEnabled(false)
		spec.Control.SetLabel(busy)
	}

	r.metrics.started()
	go work(r, t, spec, restoreLabel)

	return t, true
}

// work is the background phase. It never lets an error or panic escape.
func work[T any](r *Runner, t *Task[T], spec Spec[T], restoreLabel string) {
	t.setState(StateRunning)
	logger := r.logger.WithFields(logrus.Fields{
		"task":    t.name,
		"task_id": t.id,
	})
	logger.Debug("task running")

	ctx := r.baseCtx
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "task."+t.name, trace.WithAttributes(
		attribute.String("task.id", t.id),
	))

	timer := perf.Start("task."+t.name, logger)
	var value T
	err := recoverable(logger, t.name, func() error {
		if spec.Op == nil {
			return failure.New(failure.Unexpected, "no operation configured")
		}
		var opErr error
		value, opErr = spec.Op(ctx)
		return opErr
	})
	duration := timer.StopWithThreshold(r.slowThreshold)

	var res Result[T]
	if err != nil {
		res.Err = failure.From(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Err.Category.String())
		t.mu.Lock()
		t.state = StateFailed
		t.result = res
		t.mu.Unlock()
		logger.WithFields(logrus.Fields{
			"category":    res.Err.Category.String(),
			"duration_ms": duration.Milliseconds(),
		}).WithError(err).Warn("task failed")
	} else {
		res.Value = value
		t.mu.Lock()
		t.state = StateSucceeded
		t.result = res
		t.mu.Unlock()
		logger.WithField("duration_ms", duration.Milliseconds()).Debug("task succeeded")
	}
	span.End()
	r.metrics.finished(t.name, res.Err, duration)

	r.dispatcher.Dispatch(func() {
		deliver(r, t, spec, res, restoreLabel)
	})
}

// deliver is the completion phase. It runs on the UI thread exactly once.
func deliver[T any](r *Runner, t *Task[T], spec Spec[T], res Result[T], restoreLabel string) {
	t.once.Do(func() {
		defer close(t.delivered)
		defer t.setState(StateDelivered)

		logger := r.logger.WithFields(logrus.Fields{
			"task":    t.name,
			"task_id": t.id,
		})

		if spec.Control != nil {
			spec.Control.SetLabel(restoreLabel)
			spec.Control.SetEnabled(true)
		}

		if spec.Done != nil {
			if err := recoverable(logger, t.name+".done", func() error {
				spec.Done(res)
				return nil
			}); err != nil && spec.OnFault != nil {
				spec.OnFault(failure.UserMessage(err))
			}
		}

		if res.OK() && spec.Refresh != nil {
			if err := recoverable(logger, t.name+".refresh", func() error {
				spec.Refresh()
				return nil
			}); err != nil && spec.OnFault != nil {
				spec.OnFault(failure.UserMessage(err))
			}
		}

		logger.WithField("state", StateDelivered.String()).Debug("task delivered")
	})
}
